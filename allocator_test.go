package engine

import "testing"

func TestVoicePoolAllocatesFreeVoicesFirst(t *testing.T) {
	pool, err := NewVoicePool(4, 48000)
	if err != nil {
		t.Fatal(err)
	}
	rng := NewRand(1)

	v0 := pool.NoteOn(60, 1.0, rng)
	v1 := pool.NoteOn(62, 1.0, rng)
	if v0.Index == v1.Index {
		t.Fatal("two concurrent notes were routed to the same voice")
	}
}

// Seed scenario 3 (spec.md §8 "Polyphony cap"): polyphony=4. Issue
// note_on for MIDI notes 60,62,64,65,67. After the fifth note-on the
// oldest voice (note 60) must have been stolen; note_off(60)
// thereafter is a no-op.
func TestVoicePoolStealsOldestWhenExhausted(t *testing.T) {
	pool, err := NewVoicePool(4, 48000)
	if err != nil {
		t.Fatal(err)
	}
	rng := NewRand(1)

	notes := []int{60, 62, 64, 65, 67}
	voices := make([]*Voice, len(notes))
	for i, n := range notes {
		voices[i] = pool.NoteOn(n, 1.0, rng)
	}

	stolenIdx := voices[0].Index
	note, _ := pool.voices[stolenIdx].Note()
	if int(note) == 60 {
		t.Fatalf("voice %d still holds stolen note 60 after the fifth note-on", stolenIdx)
	}

	pool.NoteOff(60)
	stillHeld := false
	for i := range pool.voices {
		n, released := pool.voices[i].Note()
		if int(n) == 60 && !released {
			stillHeld = true
		}
	}
	if stillHeld {
		t.Fatal("note-off(60) should be a no-op once voice 60 has been stolen")
	}
}

func TestVoicePoolNoteOffReleasesLIFO(t *testing.T) {
	pool, err := NewVoicePool(4, 48000)
	if err != nil {
		t.Fatal(err)
	}
	rng := NewRand(1)

	first := pool.NoteOn(60, 1.0, rng)
	second := pool.NoteOn(60, 1.0, rng)
	if first.Index == second.Index {
		t.Fatal("stacked note-ons on the same pitch should allocate distinct voices")
	}

	pool.NoteOff(60)

	_, firstReleased := first.Note()
	_, secondReleased := second.Note()
	if firstReleased {
		t.Fatal("note-off should release the most recently stacked voice first (LIFO)")
	}
	if !secondReleased {
		t.Fatal("the most recently allocated voice for note 60 should be released")
	}
}

func TestVoicePoolNoteOffUnknownNoteIsNoOp(t *testing.T) {
	pool, err := NewVoicePool(2, 48000)
	if err != nil {
		t.Fatal(err)
	}
	pool.NoteOff(99) // must not panic or otherwise misbehave
}

func TestNewVoicePoolRejectsInvalidCapacity(t *testing.T) {
	if _, err := NewVoicePool(0, 48000); err == nil {
		t.Fatal("capacity 0 should be rejected")
	}
	if _, err := NewVoicePool(MaxPolyphony+1, 48000); err == nil {
		t.Fatal("capacity above MaxPolyphony should be rejected")
	}
}
