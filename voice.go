// voice.go - one mode bank plus synthesizer state, owning note lifecycle

package engine

import "sync/atomic"

// defaultRatios are the per-mode harmonic multiples applied to mode 0's
// frequency on note-on (spec.md §4.3): a slightly detuned octave second
// mode, a perfect twelfth third mode, and a sub-octave fourth mode for body.
var defaultRatios = [NumModes]float64{1, 2.001, 3, 0.5}

// noteState packs the fields the control thread writes and the audio
// thread reads, in one atomically-updated word (spec.md §5: "A
// per-voice note-state word must be updated atomically").
type noteState struct {
	// low 32 bits: note as int32 (-1 = none); bit 32: released
	word atomic.Uint64
}

const noteReleasedBit = uint64(1) << 32

func (n *noteState) set(note int32, released bool) {
	w := uint64(uint32(note))
	if released {
		w |= noteReleasedBit
	}
	n.word.Store(w)
}

func (n *noteState) get() (note int32, released bool) {
	w := n.word.Load()
	return int32(uint32(w)), w&noteReleasedBit != 0
}

// Voice owns one ModeBank and one synthesizer; it is the unit the
// allocator hands out per sounding note (spec.md §3, §4.3).
type Voice struct {
	Index int

	bank  ModeBank
	synth synthState

	state noteState
	generation uint64 // steal-priority timestamp, control-thread-assigned

	velocity float64
	ratios   [NumModes]float64
	gammas   [NumModes]float64

	pendingCoupling complex128
	modeGain        [NumModes]float64

	sampleRate   float64
	controlAccum float64

	silenceEps   float64
	silenceTauS  float64
}

// Initialize performs one-time setup for a voice at the given sample
// rate (spec.md §4.3 "initialize(f_s) - one-time setup; may allocate").
func (v *Voice) Initialize(sampleRate float64) {
	v.sampleRate = sampleRate
	v.ratios = defaultRatios
	v.gammas = [NumModes]float64{2.0, 2.5, 3.0, 4.0}
	v.modeGain = [NumModes]float64{1, 1, 1, 1}
	v.silenceEps = DefaultSilenceEps
	v.silenceTauS = DefaultSilenceTauMs / 1000.0
	v.state.set(-1, false)
	v.bank.Personality = Resonator
	for k := 0; k < NumModes; k++ {
		v.bank.Modes[k].Active = (k == 0)
		v.bank.Modes[k].Weight = 1
		v.bank.Modes[k].Gamma = v.gammas[k]
	}
	// A never-excited voice has not sounded since its last note-on
	// (spec.md §3 Voice invariant), so it must read as silent/available
	// to the allocator from the very first NoteOn call onward.
	v.bank.state = bankSilent
}

// NoteOn reconfigures the bank from a MIDI note/velocity pair and
// injects an equal-weighted poke scaled by velocity (spec.md §4.3).
func (v *Voice) NoteOn(midiNote int, velocity float64, generation uint64, rng *Rand) {
	v.bank.resetState()
	v.velocity = velocity
	v.generation = generation

	freq0 := midiToFreq(float64(midiNote))
	for k := 0; k < NumModes; k++ {
		m := &v.bank.Modes[k]
		m.Omega = freqToOmega(freq0 * v.ratios[k])
		m.Gamma = v.gammas[k]
		m.Active = true
		v.synth.recomputeIncrement(k, m.Omega, v.sampleRate)
	}
	v.synth.resetPhase()

	weights := [NumModes]float64{1, 1, 1, 1}
	v.bank.Envelope.trigger(velocity, DefaultPokeDurationMs, resolvePhaseHint(-1, rng), weights)

	v.state.set(int32(midiNote), false)
}

// NoteOff marks the voice released without zeroing state: resonator
// voices ring out naturally; self-oscillator voices are silenced by
// clamping gamma positive until the next note-on (spec.md §4.3).
func (v *Voice) NoteOff() {
	note, _ := v.state.get()
	v.state.set(note, true)
	if v.bank.Personality == SelfOscillator {
		for k := range v.bank.Modes {
			if v.bank.Modes[k].Gamma < 0 {
				v.bank.Modes[k].Gamma = -v.bank.Modes[k].Gamma
			}
		}
	}
}

// SetMode reconfigures one mode at runtime (spec.md §4.3).
func (v *Voice) SetMode(idx int, freqHz float64, gamma float64, weight float64) {
	if idx < 0 || idx >= NumModes {
		return
	}
	m := &v.bank.Modes[idx]
	m.Omega = freqToOmega(freqHz)
	m.Gamma = gamma
	m.Weight = weight
	v.gammas[idx] = gamma
	v.synth.recomputeIncrement(idx, m.Omega, v.sampleRate)
}

// Poke injects an excitation envelope directly, overriding the note-on
// convenience poke (spec.md §6 engine_poke).
func (v *Voice) Poke(strength float64, phaseHint float64, weights [NumModes]float64, rng *Rand) {
	v.bank.Envelope.trigger(strength, DefaultPokeDurationMs, resolvePhaseHint(phaseHint, rng), weights)
}

func resolvePhaseHint(phaseHint float64, rng *Rand) float64 {
	if phaseHint < 0 {
		return rng.Float64() * 2 * 3.141592653589793
	}
	return phaseHint
}

// ApplyCoupling adds to the forcing consumed by the next control tick
// (spec.md §4.3).
func (v *Voice) ApplyCoupling(u0 complex128) {
	v.pendingCoupling += u0
}

// Mode0State is the read-only accessor used by the coupling engine
// (spec.md §4.3).
func (v *Voice) Mode0State() complex128 {
	return v.bank.Modes[0].State
}

// Tick advances the control-rate integrator by one period, consuming
// any pending coupling forcing.
func (v *Voice) Tick(dt float64) {
	u0 := v.pendingCoupling
	v.pendingCoupling = 0
	v.bank.Tick(dt, u0, v.silenceEps, v.silenceTauS)
}

// SetSampleRate recomputes phase increments without touching accumulators.
func (v *Voice) SetSampleRate(sampleRate float64) {
	v.sampleRate = sampleRate
	v.synth.setSampleRate(&v.bank, sampleRate)
}

// SetSilenceThreshold overrides the default silence epsilon/duration.
func (v *Voice) SetSilenceThreshold(eps float64, tauS float64) {
	v.silenceEps = eps
	v.silenceTauS = tauS
}

// RenderSample synthesizes one mono output sample from the current
// audio-rate state and the last block snapshot; it does not take a new
// snapshot (see SnapshotBlock).
func (v *Voice) RenderSample(masterGain float64, muted bool) float64 {
	return v.synth.step(&v.bank, v.modeGain, masterGain, muted)
}

// SnapshotBlock captures the integrator's current complex state for
// use across the next block of samples (spec.md §5 block-granularity read).
func (v *Voice) SnapshotBlock() {
	v.synth.snapshotFrom(&v.bank)
}

// Render advances this voice's own control accumulator and emits n
// mono samples, copied to both channels (spec.md §4.3). It is the
// standalone single-voice path; polyphonic engines drive Tick/
// RenderSample/SnapshotBlock directly so every voice shares one clock.
func (v *Voice) Render(outL, outR []float64, n int, masterGain float64, muted bool) {
	if v.sampleRate <= 0 {
		return
	}
	v.controlAccum += float64(n) / v.sampleRate
	for v.controlAccum >= DefaultControlDt {
		v.controlAccum -= DefaultControlDt
		v.Tick(DefaultControlDt)
	}
	v.SnapshotBlock()
	for i := 0; i < n; i++ {
		s := v.RenderSample(masterGain, muted)
		outL[i] = s
		outR[i] = s
	}
}

// IsActive is true unless the bank is silent per spec.md §4.1. It reads
// only the bank's state machine, not the note state.
func (v *Voice) IsActive() bool {
	return !v.bank.isSilent()
}

// Note returns the held MIDI note (-1 if none) and whether note-off
// has been seen.
func (v *Voice) Note() (note int32, released bool) {
	return v.state.get()
}

// Generation is the steal-priority timestamp assigned at the last note-on.
func (v *Voice) Generation() uint64 {
	return v.generation
}

// SmoothedMagnitude returns the largest per-mode smoothed amplitude,
// used by the allocator's "released, quietest" steal policy.
func (v *Voice) SmoothedMagnitude() float64 {
	max := 0.0
	for _, s := range v.synth.smoothed {
		if s > max {
			max = s
		}
	}
	return max
}
