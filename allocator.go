// allocator.go - fixed voice pool, polyphonic note allocation and stealing

package engine

const (
	DefaultPolyphony = 16
	MaxPolyphony     = 32
)

// VoicePool is the fixed-capacity, allocated-once-at-init pool of
// voices (spec.md §3). It owns note->voice bookkeeping and the
// allocation/steal policy (spec.md §4.4).
type VoicePool struct {
	voices     []Voice
	generation uint64
	// noteStack maps a held MIDI note to the indices of voices
	// currently sounding it, most-recently-allocated last, so note-off
	// can release LIFO when the same pitch is stacked.
	noteStack map[int][]int
}

// NewVoicePool allocates capacity voices and initializes them at the
// given sample rate.
func NewVoicePool(capacity int, sampleRate float64) (*VoicePool, error) {
	if capacity <= 0 || capacity > MaxPolyphony {
		return nil, newError(InvalidParameter, "polyphony must be in [1,%d], got %d", MaxPolyphony, capacity)
	}
	p := &VoicePool{
		voices:    make([]Voice, capacity),
		noteStack: make(map[int][]int),
	}
	for i := range p.voices {
		p.voices[i].Index = i
		p.voices[i].Initialize(sampleRate)
	}
	return p, nil
}

func (p *VoicePool) Len() int { return len(p.voices) }

func (p *VoicePool) Voice(i int) *Voice { return &p.voices[i] }

// ActiveCount returns the number of voices currently sounding, used for
// the polyphony-aware headroom divisor (spec.md §4.4).
func (p *VoicePool) ActiveCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].IsActive() {
			n++
		}
	}
	return n
}

// NoteOn picks a voice by the three-tier policy in spec.md §4.4: first
// any silent voice, then the released voice with the smallest smoothed
// magnitude, finally the voice with the oldest note-on timestamp.
func (p *VoicePool) NoteOn(midiNote int, velocity float64, rng *Rand) *Voice {
	idx := p.pickVoice()
	p.evictFromStack(idx)

	p.generation++
	v := &p.voices[idx]
	v.NoteOn(midiNote, velocity, p.generation, rng)
	p.noteStack[midiNote] = append(p.noteStack[midiNote], idx)
	return v
}

// evictFromStack removes voice idx from whatever note stack it
// currently occupies, if any — needed when NoteOn reclaims a voice via
// stealing rather than through NoteOff, so a later note-off for the
// stolen note becomes the documented no-op (spec.md seed scenario 3).
func (p *VoicePool) evictFromStack(idx int) {
	note, _ := p.voices[idx].Note()
	if note < 0 {
		return
	}
	stack := p.noteStack[int(note)]
	for i, v := range stack {
		if v == idx {
			p.noteStack[int(note)] = append(stack[:i], stack[i+1:]...)
			break
		}
	}
	if len(p.noteStack[int(note)]) == 0 {
		delete(p.noteStack, int(note))
	}
}

func (p *VoicePool) pickVoice() int {
	for i := range p.voices {
		if !p.voices[i].IsActive() {
			return i
		}
	}

	bestReleased := -1
	bestMagnitude := 0.0
	for i := range p.voices {
		_, released := p.voices[i].Note()
		if !released {
			continue
		}
		mag := p.voices[i].SmoothedMagnitude()
		if bestReleased == -1 || mag < bestMagnitude {
			bestReleased = i
			bestMagnitude = mag
		}
	}
	if bestReleased != -1 {
		return bestReleased
	}

	oldest := 0
	oldestGen := p.voices[0].Generation()
	for i := 1; i < len(p.voices); i++ {
		if g := p.voices[i].Generation(); g < oldestGen {
			oldest = i
			oldestGen = g
		}
	}
	return oldest
}

// NoteOff releases the most recent voice holding midiNote (spec.md
// §4.4: "Duplicate note-ons on the same pitch produce stacked voices;
// note-off releases them LIFO"). A note with no held voice is a no-op.
func (p *VoicePool) NoteOff(midiNote int) {
	stack := p.noteStack[midiNote]
	if len(stack) == 0 {
		return
	}
	idx := stack[len(stack)-1]
	p.noteStack[midiNote] = stack[:len(stack)-1]
	if len(p.noteStack[midiNote]) == 0 {
		delete(p.noteStack, midiNote)
	}
	p.voices[idx].NoteOff()
}
