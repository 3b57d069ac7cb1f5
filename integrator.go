// integrator.go - exact exponential integration of the mode bank

package engine

import (
	"math"
	"math/cmplx"
)

const (
	// DefaultControlRateHz is f_ctrl from spec.md §4.1.
	DefaultControlRateHz = 500.0
	// DefaultControlDt is Delta t = 1/f_ctrl.
	DefaultControlDt = 1.0 / DefaultControlRateHz

	// DefaultSilenceEps is epsilon from spec.md §4.1 / §9.
	DefaultSilenceEps = 1e-3
	// DefaultSilenceTauMs is tau_silence from spec.md §4.1 / §9.
	DefaultSilenceTauMs = 50.0
)

func cmplxAbs(a complex128) float64 {
	return cmplx.Abs(a)
}

// Tick advances the bank by one control-rate step of duration dt,
// folding in the excitation envelope and any pending coupling forcing
// on mode 0. This is the exact-exponential update of spec.md §4.1:
//
//	a <- e^((-gamma+i*omega)*dt) * a + u*dt
//
// The complex multiplier is computed directly (never small-angle
// approximated) so damping and rotation stay numerically exact per
// step regardless of how large omega*dt is.
func (b *ModeBank) Tick(dt float64, coupling0 complex128, silenceEps float64, silenceTauS float64) {
	if silenceEps <= 0 {
		silenceEps = DefaultSilenceEps
	}

	excited := b.Envelope.Active
	envelopeForcing := b.Envelope.forcing(dt)

	for k := 0; k < NumModes; k++ {
		m := &b.Modes[k]
		if !m.Active {
			continue
		}

		u := envelopeForcing[k]
		if k == 0 {
			u += coupling0
		}

		multiplier := cmplx.Exp(complex(-m.Gamma, m.Omega) * complex(dt, 0))
		m.State = multiplier*m.State + u*complex(dt, 0)

		if b.Personality == SelfOscillator && m.Gamma < 0 {
			ceiling := selfOscCeilingRatio * m.Weight
			if mag := cmplxAbs(m.State); ceiling > 0 && mag > ceiling {
				m.State *= complex(ceiling/mag, 0)
			}
		}

		if !isFiniteComplex(m.State) {
			m.State = 0
		}
	}

	b.Step++
	b.advanceState(dt, excited, silenceEps, silenceTauS)
}

// advanceState runs the Idle -> Exciting -> Ringing -> Silent machine
// from spec.md §4.1. excited reports whether the envelope was active at
// the start of this tick, so an envelope shorter than one tick still
// passes through Exciting.
func (b *ModeBank) advanceState(dt float64, excited bool, silenceEps float64, silenceTauS float64) {
	if silenceTauS <= 0 {
		silenceTauS = DefaultSilenceTauMs / 1000.0
	}

	if excited {
		b.state = bankExciting
		b.silentElapsed = 0
		return
	}

	if b.state == bankExciting {
		b.state = bankRinging
	}

	if b.maxMagnitude() < silenceEps {
		b.silentElapsed += dt
		if b.silentElapsed >= silenceTauS {
			b.state = bankSilent
		}
	} else {
		b.silentElapsed = 0
		if b.state == bankSilent {
			b.state = bankRinging
		}
	}
}

func isFiniteComplex(a complex128) bool {
	return isFiniteFloat(real(a)) && isFiniteFloat(imag(a))
}

func isFiniteFloat(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
