// engine.go - the engine handle: control entry points and render loop

package engine

import (
	"math"
	"sync"
	"sync/atomic"
)

// renderParams is the set of control-rate parameters the audio thread
// reads every Render call. It is published as a whole via
// atomic.Pointer, the same lock-free idiom the teacher uses for
// OtoPlayer's *SoundChip field (audio_backend_oto.go) — the audio
// thread never takes e.mu.
type renderParams struct {
	sampleRate float64
	masterGain float64
	kappa      float64
	cplMode    CouplingMode
}

// Engine is a self-contained instance of the modal synthesis core; the
// redesign carries all state on a handle so multiple instances can
// coexist, rather than the teacher's process-wide chip state
// (spec.md §9 "Global/process state").
type Engine struct {
	pool *VoicePool
	rng  *Rand

	matrix atomic.Pointer[CouplingMatrix]
	params atomic.Pointer[renderParams]
	driver CouplingDriver
	muted  atomic.Bool

	mu           sync.Mutex // guards the control-thread setters; never touched by Render
	silenceEps   float64
	silenceTauMs float64

	controlAccum float64
	faultCount   atomic.Uint64
}

// NewEngine is the control-thread entry point analogous to
// engine_init(f_s, polyphony) in spec.md §6.
func NewEngine(sampleRate float64, polyphony int) (*Engine, error) {
	if sampleRate < 8000 || sampleRate > 192000 {
		return nil, newError(Unsupported, "sample rate %g out of range [8000,192000]", sampleRate)
	}
	if polyphony < 1 || polyphony > MaxPolyphony {
		return nil, newError(InvalidParameter, "polyphony must be in [1,%d], got %d", MaxPolyphony, polyphony)
	}

	pool, err := NewVoicePool(polyphony, sampleRate)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		pool:         pool,
		rng:          NewRand(1),
		silenceEps:   DefaultSilenceEps,
		silenceTauMs: DefaultSilenceTauMs,
	}
	e.params.Store(&renderParams{
		sampleRate: sampleRate,
		masterGain: 1,
		cplMode:    CouplingMagnitude,
	})
	none, _ := BuildCouplingMatrix(TopologySpec{Kind: TopologyNone}, polyphony, e.rng)
	e.matrix.Store(none)
	e.driver.Init(polyphony)
	return e, nil
}

// NoteOn is the control-thread entry point (spec.md §6 engine_note_on).
func (e *Engine) NoteOn(note int, velocity float64) error {
	if note < 0 || note > 127 {
		return newError(InvalidParameter, "note %d out of range [0,127]", note)
	}
	if velocity < 0 || velocity > 1 {
		return newError(InvalidParameter, "velocity %g out of range [0,1]", velocity)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.NoteOn(note, velocity, e.rng)
	return nil
}

// NoteOff is the control-thread entry point (spec.md §6 engine_note_off).
func (e *Engine) NoteOff(note int) error {
	if note < 0 || note > 127 {
		return newError(InvalidParameter, "note %d out of range [0,127]", note)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.NoteOff(note)
	return nil
}

// Poke is the control-thread entry point (spec.md §6 engine_poke).
// A negative phaseHint means "random".
func (e *Engine) Poke(voiceIdx int, strength float64, phaseHint float64, weights [NumModes]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if voiceIdx < 0 || voiceIdx >= e.pool.Len() {
		return newError(InvalidParameter, "voice index %d out of range [0,%d)", voiceIdx, e.pool.Len())
	}
	if strength < 0 || strength > 1 {
		return newError(InvalidParameter, "strength %g out of range [0,1]", strength)
	}
	for k, w := range weights {
		if w < 0 || w > 1 {
			return newError(InvalidParameter, "mode weight %d = %g out of range [0,1]", k, w)
		}
	}
	e.pool.Voice(voiceIdx).Poke(strength, phaseHint, weights, e.rng)
	return nil
}

// SetTopology rebuilds the coupling matrix from scratch into a shadow
// allocation and publishes it atomically (spec.md §6 engine_set_topology,
// §4.5 "Atomicity", §5 "Topology swaps are atomic at the matrix
// granularity").
func (e *Engine) SetTopology(spec TopologySpec, kappa float64) error {
	if kappa < 0 || kappa > 1 {
		return newError(InvalidParameter, "kappa %g out of range [0,1]", kappa)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := BuildCouplingMatrix(spec, e.pool.Len(), e.rng)
	if err != nil {
		return newError(ResourceExhausted, "topology rebuild failed: %v", err)
	}
	next := *e.params.Load()
	next.kappa = kappa
	e.params.Store(&next)
	e.matrix.Store(m)
	return nil
}

// SetCouplingMode switches between the default magnitude-only
// (excitatory) coupling and the opt-in signed extension (spec.md §9).
func (e *Engine) SetCouplingMode(mode CouplingMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := *e.params.Load()
	next.cplMode = mode
	e.params.Store(&next)
}

// SetVoiceMode reconfigures one mode of one voice at runtime
// (spec.md §6 engine_set_voice_mode).
func (e *Engine) SetVoiceMode(voiceIdx int, k int, freqHz float64, gamma float64, weight float64) error {
	if voiceIdx < 0 || voiceIdx >= e.pool.Len() {
		return newError(InvalidParameter, "voice index %d out of range [0,%d)", voiceIdx, e.pool.Len())
	}
	if k < 0 || k >= NumModes {
		return newError(InvalidParameter, "mode index %d out of range [0,%d)", k, NumModes)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.Voice(voiceIdx).SetMode(k, freqHz, gamma, weight)
	return nil
}

// SetSampleRate is the control-thread entry point (spec.md §6
// engine_set_sample_rate); supported rates span [8k,192k] Hz.
func (e *Engine) SetSampleRate(sampleRate float64) error {
	if sampleRate < 8000 || sampleRate > 192000 {
		return newError(Unsupported, "sample rate %g out of range [8000,192000]", sampleRate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := *e.params.Load()
	next.sampleRate = sampleRate
	e.params.Store(&next)
	for i := 0; i < e.pool.Len(); i++ {
		e.pool.Voice(i).SetSampleRate(sampleRate)
	}
	return nil
}

// SetMasterGain clamps to [0,1] (spec.md §6 engine_set_master_gain).
func (e *Engine) SetMasterGain(g float64) {
	if g < 0 {
		g = 0
	} else if g > 1 {
		g = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := *e.params.Load()
	next.masterGain = g
	e.params.Store(&next)
}

// Mute is idempotent (spec.md §6 engine_mute).
func (e *Engine) Mute(on bool) {
	e.muted.Store(on)
}

// SetSilenceThreshold overrides epsilon/tau_silence for every voice
// (spec.md §9 open question).
func (e *Engine) SetSilenceThreshold(eps float64, tauMs float64) error {
	if eps <= 0 {
		return newError(InvalidParameter, "eps must be positive, got %g", eps)
	}
	if tauMs <= 0 {
		return newError(InvalidParameter, "tau must be positive, got %g", tauMs)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.silenceEps = eps
	e.silenceTauMs = tauMs
	for i := 0; i < e.pool.Len(); i++ {
		e.pool.Voice(i).SetSilenceThreshold(eps, tauMs/1000.0)
	}
	return nil
}

// FaultCount reads the one-shot non-finite-sample diagnostic counter
// from the control thread (spec.md §4.6, §7).
func (e *Engine) FaultCount() uint64 {
	return e.faultCount.Load()
}

// VoiceSnapshot is a read-only, allocating snapshot of one voice's
// state, for diagnostics and tests (SPEC_FULL.md §12).
type VoiceSnapshot struct {
	Index      int
	Note       int32
	Released   bool
	Active     bool
	Magnitude  float64
	Generation uint64
}

// Snapshot dumps per-voice state; control-thread only, allocates.
func (e *Engine) Snapshot() []VoiceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]VoiceSnapshot, e.pool.Len())
	for i := 0; i < e.pool.Len(); i++ {
		v := e.pool.Voice(i)
		note, released := v.Note()
		out[i] = VoiceSnapshot{
			Index:      i,
			Note:       note,
			Released:   released,
			Active:     v.IsActive(),
			Magnitude:  v.SmoothedMagnitude(),
			Generation: v.Generation(),
		}
	}
	return out
}

// Render is the audio-thread entry point (spec.md §6 engine_render). It
// advances the control-rate integrator and coupling engine in lockstep
// for every whole control period elapsed during n frames, carrying
// fractional residue across calls (spec.md §9 option (b)), then emits n
// mono-aggregate samples copied to both channels. It never suspends,
// never allocates, and never returns an error (spec.md §5, §7).
func (e *Engine) Render(outL, outR []float32, n int) {
	p := e.params.Load()
	sampleRate := p.sampleRate
	masterGain := p.masterGain
	muted := e.muted.Load()
	matrix := e.matrix.Load()
	kappa := p.kappa
	cplMode := p.cplMode

	if sampleRate > 0 {
		e.controlAccum += float64(n) / sampleRate
		for e.controlAccum >= DefaultControlDt {
			e.controlAccum -= DefaultControlDt
			e.driver.Step(e.pool, matrix, kappa, cplMode)
			for i := 0; i < e.pool.Len(); i++ {
				e.pool.Voice(i).Tick(DefaultControlDt)
			}
		}
	}

	for i := 0; i < e.pool.Len(); i++ {
		e.pool.Voice(i).SnapshotBlock()
	}

	activeVoices := e.pool.ActiveCount()
	headroom := 1.0
	if activeVoices > 1 {
		headroom = 1.0 / math.Sqrt(float64(activeVoices))
	}

	for i := 0; i < n; i++ {
		mix := 0.0
		for vi := 0; vi < e.pool.Len(); vi++ {
			v := e.pool.Voice(vi)
			if !v.IsActive() {
				continue
			}
			mix += v.RenderSample(masterGain, muted) * headroom
		}
		if !isFiniteFloat(mix) {
			mix = 0
			e.faultCount.Add(1)
		}
		s := float32(mix)
		outL[i] = s
		outR[i] = s
	}
}
