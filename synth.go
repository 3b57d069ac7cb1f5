// synth.go - per-mode phase-coherent sinusoidal rendering

package engine

import "math"

const (
	// smoothingAlpha is the one-pole coefficient applied to the
	// magnitude envelope per output sample (spec.md §4.2).
	smoothingAlpha = 0.12
	// headroomClamp is the ceiling on A_k*g_mode*g_master (spec.md §4.2).
	headroomClamp = 0.7

	phaseWrap = 1 << 32 // 32-bit phase accumulator wraps modulo this
)

// synthState is the audio-rate state owned exclusively by the render
// path: phase accumulators and smoothed per-mode magnitudes, kept
// separate from the integrator's complex state so the audio thread
// never mutates it (spec.md §3 SmoothedAmplitudes / PhaseAccumulators).
type synthState struct {
	phase     [NumModes]uint32
	increment [NumModes]uint32
	smoothed  [NumModes]float64
	// snapshot of mode state taken once per render() call, so a
	// concurrent control-thread tick can't tear a sample's view of a
	// (spec.md §5: "reads a snapshot per block, not per sample").
	snapshot [NumModes]complex128
}

// setSampleRate recomputes every mode's phase increment from its
// stored omega; it never touches the accumulators themselves (spec.md
// §4.2 "Sample-rate change").
func (s *synthState) setSampleRate(bank *ModeBank, sampleRate float64) {
	for k := 0; k < NumModes; k++ {
		s.recomputeIncrement(k, bank.Modes[k].Omega, sampleRate)
	}
}

func (s *synthState) recomputeIncrement(k int, omega float64, sampleRate float64) {
	if sampleRate <= 0 {
		s.increment[k] = 0
		return
	}
	freq := omega / (2 * math.Pi)
	cyclesPerSample := freq / sampleRate
	s.increment[k] = uint32(int64(cyclesPerSample * phaseWrap))
}

// resetPhase sets all accumulators to 0; smoothed magnitudes are left
// untouched (spec.md §4.2).
func (s *synthState) resetPhase() {
	for k := range s.phase {
		s.phase[k] = 0
	}
}

// snapshotFrom copies the integrator's current complex state for use
// across the whole upcoming render() block.
func (s *synthState) snapshotFrom(bank *ModeBank) {
	for k := 0; k < NumModes; k++ {
		s.snapshot[k] = bank.Modes[k].State
	}
}

// step synthesizes one mono output sample from the snapshotted mode
// state, advancing phase accumulators and smoothed magnitudes. Muted
// returns silence without advancing phase (spec.md §4.2).
func (s *synthState) step(bank *ModeBank, modeGain [NumModes]float64, masterGain float64, muted bool) float64 {
	if muted {
		return 0
	}

	sample := 0.0
	for k := 0; k < NumModes; k++ {
		m := &bank.Modes[k]
		if !m.Active {
			continue
		}

		target := cmplxAbs(s.snapshot[k]) * m.Weight
		s.smoothed[k] += smoothingAlpha * (target - s.smoothed[k])

		gain := s.smoothed[k] * modeGain[k] * masterGain
		if gain > headroomClamp {
			gain = headroomClamp
		} else if gain < -headroomClamp {
			gain = -headroomClamp
		}

		theta := phaseToRadians(s.phase[k])
		argA := cmplxArg(s.snapshot[k])
		sample += gain * sinApprox(theta+argA)

		s.phase[k] += s.increment[k]
	}

	if !isFiniteFloat(sample) {
		return 0
	}
	return sample
}

func phaseToRadians(p uint32) float64 {
	return (float64(p) / phaseWrap) * 2 * math.Pi
}

func cmplxArg(a complex128) float64 {
	return math.Atan2(imag(a), real(a))
}

// sinApprox approximates sin(x) via a seventh-order Taylor expansion.
// The Taylor series is only accurate near 0, so x is
// first range-reduced into [-pi,pi] and then folded into [-pi/2,pi/2]
// using sin(pi-x)=sin(x) and sin(-pi-x)=-sin(x) before the polynomial
// is applied; this keeps accuracy better than 0.1% relative error
// (about 0.016% at worst, at +-pi/2) across the full interval.
func sinApprox(x float64) float64 {
	x = reduceToPi(x)
	if x > math.Pi/2 {
		x = math.Pi - x
	} else if x < -math.Pi/2 {
		x = -math.Pi - x
	}
	x2 := x * x
	return x * (1 - x2/6*(1-x2/20*(1-x2/42)))
}

// reduceToPi wraps x into [-pi,pi].
func reduceToPi(x float64) float64 {
	const twoPi = 2 * math.Pi
	x = math.Mod(x, twoPi)
	if x > math.Pi {
		x -= twoPi
	} else if x < -math.Pi {
		x += twoPi
	}
	return x
}
