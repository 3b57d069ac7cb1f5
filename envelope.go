// envelope.go - Hann-windowed excitation envelope for poke transients

package engine

import "math"

const (
	// MinPokeDurationMs and MaxPokeDurationMs bound the configurable
	// poke duration (spec.md §4.1).
	MinPokeDurationMs = 1.0
	MaxPokeDurationMs = 20.0
	// DefaultPokeDurationMs is used when a caller doesn't override it.
	DefaultPokeDurationMs = 5.0
)

// excitationEnvelope shapes a single poke transient into control-rate
// forcing. Exactly one envelope is active per bank at a time; a new
// poke preempts whatever is running (spec.md §3, §4.1).
type excitationEnvelope struct {
	Active    bool
	Strength  float64
	DurationS float64
	Elapsed   float64
	PhaseHint float64 // radians, already resolved if the poke asked for "random"
	Weights   [NumModes]float64
}

// trigger installs a fresh envelope, overwriting whatever was active.
func (e *excitationEnvelope) trigger(strength float64, durationMs float64, phaseHint float64, weights [NumModes]float64) {
	if durationMs < MinPokeDurationMs {
		durationMs = MinPokeDurationMs
	}
	if durationMs > MaxPokeDurationMs {
		durationMs = MaxPokeDurationMs
	}
	e.Active = true
	e.Strength = strength
	e.DurationS = durationMs / 1000.0
	e.Elapsed = 0
	e.PhaseHint = phaseHint
	e.Weights = weights
}

// hann evaluates the Hann window at x in [0,1]; outside that range it
// is treated as 0 (envelope finished).
func hann(x float64) float64 {
	if x < 0 || x > 1 {
		return 0
	}
	return 0.5 * (1 - math.Cos(2*math.Pi*x))
}

// forcing returns the per-mode complex forcing u_k contributed by this
// control tick and advances the envelope's elapsed time. Once the
// window completes the envelope goes inactive and returns zero forcing
// for every mode.
func (e *excitationEnvelope) forcing(dt float64) [NumModes]complex128 {
	var u [NumModes]complex128
	if !e.Active {
		return u
	}
	x := e.Elapsed / e.DurationS
	w := hann(x)
	phaseFactor := complex(math.Cos(e.PhaseHint), math.Sin(e.PhaseHint))
	for k := 0; k < NumModes; k++ {
		u[k] = complex(e.Strength*w*e.Weights[k], 0) * phaseFactor
	}
	e.Elapsed += dt
	if e.Elapsed >= e.DurationS {
		e.Active = false
	}
	return u
}
