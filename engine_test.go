package engine

import (
	"math"
	"testing"
)

func TestNewEngineValidatesSampleRateAndPolyphony(t *testing.T) {
	if _, err := NewEngine(4000, 4); err == nil {
		t.Fatal("sample rate below 8kHz should be rejected")
	}
	if _, err := NewEngine(200000, 4); err == nil {
		t.Fatal("sample rate above 192kHz should be rejected")
	}
	if _, err := NewEngine(48000, 0); err == nil {
		t.Fatal("polyphony 0 should be rejected")
	}
	if _, err := NewEngine(48000, MaxPolyphony+1); err == nil {
		t.Fatal("polyphony above MaxPolyphony should be rejected")
	}
	if _, err := NewEngine(48000, 8); err != nil {
		t.Fatalf("valid construction failed: %v", err)
	}
}

func TestEngineNoteOnValidatesRange(t *testing.T) {
	e, err := NewEngine(48000, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.NoteOn(128, 1.0); err == nil {
		t.Fatal("note 128 should be rejected")
	}
	if err := e.NoteOn(60, 1.5); err == nil {
		t.Fatal("velocity 1.5 should be rejected")
	}
	if err := e.NoteOn(60, 1.0); err != nil {
		t.Fatalf("valid note-on failed: %v", err)
	}
}

// Every emitted sample must be finite and within [-1,1] (spec.md §8
// universal invariant).
func TestEngineRenderProducesFiniteBoundedSamples(t *testing.T) {
	e, err := NewEngine(48000, 8)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{60, 62, 64, 67, 71, 74} {
		if err := e.NoteOn(n, 0.9); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.SetTopology(TopologySpec{Kind: TopologyComplete}, 0.3); err != nil {
		t.Fatal(err)
	}

	const blocks = 200
	const blockSize = 512
	left := make([]float32, blockSize)
	right := make([]float32, blockSize)
	for b := 0; b < blocks; b++ {
		e.Render(left, right, blockSize)
		for i, s := range left {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatalf("block %d sample %d is non-finite: %v", b, i, s)
			}
			if s > 1.0 || s < -1.0 {
				t.Fatalf("block %d sample %d out of range: %v", b, i, s)
			}
			if right[i] != s {
				t.Fatalf("block %d sample %d: L/R mismatch (mono-aggregate), L=%v R=%v", b, i, s, right[i])
			}
		}
	}
}

// mute(true); mute(false) with no render in between is a no-op:
// subsequent output is identical to never muting at all (spec.md §8
// round-trip/idempotence property).
func TestEngineMuteUnmuteRoundTrip(t *testing.T) {
	const blockSize = 256
	const blocks = 40

	run := func(toggleMuteAt int) []float32 {
		e, err := NewEngine(48000, 4)
		if err != nil {
			t.Fatal(err)
		}
		_ = e.NoteOn(69, 1.0)
		out := make([]float32, 0, blocks*blockSize)
		left := make([]float32, blockSize)
		right := make([]float32, blockSize)
		for b := 0; b < blocks; b++ {
			if b == toggleMuteAt {
				e.Mute(true)
				e.Mute(false)
			}
			e.Render(left, right, blockSize)
			out = append(out, left...)
		}
		return out
	}

	baseline := run(-1)
	toggled := run(blocks / 2)

	for i := range baseline {
		if baseline[i] != toggled[i] {
			t.Fatalf("sample %d diverged after a no-render mute/unmute toggle: %v vs %v", i, baseline[i], toggled[i])
		}
	}
}

func TestEngineSetTopologyValidatesKappa(t *testing.T) {
	e, err := NewEngine(48000, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetTopology(TopologySpec{Kind: TopologyRing}, 1.5); err == nil {
		t.Fatal("kappa > 1 should be rejected")
	}
	if err := e.SetTopology(TopologySpec{Kind: TopologyRing}, -0.1); err == nil {
		t.Fatal("kappa < 0 should be rejected")
	}
	if err := e.SetTopology(TopologySpec{Kind: TopologyHubSpoke, Hub: 99}, 0.2); err == nil {
		t.Fatal("out-of-range hub should be rejected and leave the existing matrix intact")
	}
}

func TestEngineSetMasterGainClamps(t *testing.T) {
	e, err := NewEngine(48000, 4)
	if err != nil {
		t.Fatal(err)
	}
	e.SetMasterGain(-1)
	if g := e.params.Load().masterGain; g != 0 {
		t.Fatalf("master gain = %v, want clamped to 0", g)
	}
	e.SetMasterGain(5)
	if g := e.params.Load().masterGain; g != 1 {
		t.Fatalf("master gain = %v, want clamped to 1", g)
	}
}

func TestEngineSetSampleRateRejectsOutOfRange(t *testing.T) {
	e, err := NewEngine(48000, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetSampleRate(1000); err == nil {
		t.Fatal("1000Hz should be rejected")
	}
	if err := e.SetSampleRate(96000); err != nil {
		t.Fatalf("96kHz should be accepted: %v", err)
	}
}

func TestEngineSnapshotReflectsActiveVoices(t *testing.T) {
	e, err := NewEngine(48000, 4)
	if err != nil {
		t.Fatal(err)
	}
	snaps := e.Snapshot()
	for _, s := range snaps {
		if s.Active {
			t.Fatalf("voice %d reports active before any note-on", s.Index)
		}
	}

	if err := e.NoteOn(60, 1.0); err != nil {
		t.Fatal(err)
	}
	left := make([]float32, 256)
	right := make([]float32, 256)
	e.Render(left, right, 256)

	snaps = e.Snapshot()
	sawActive := false
	for _, s := range snaps {
		if s.Active {
			sawActive = true
		}
	}
	if !sawActive {
		t.Fatal("expected at least one active voice after note-on and a render call")
	}
}

func TestEnginePolyphonyCapStealsOldest(t *testing.T) {
	e, err := NewEngine(48000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.NoteOn(60, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := e.NoteOn(62, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := e.NoteOn(64, 1.0); err != nil {
		t.Fatal(err)
	}

	for _, v := range e.pool.voices {
		if n, released := v.Note(); int(n) == 60 && !released {
			t.Fatal("note 60 should have been stolen once polyphony was exceeded")
		}
	}
	if err := e.NoteOff(60); err != nil {
		t.Fatalf("note-off of a stolen note should not error: %v", err)
	}
}
