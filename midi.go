// midi.go - MIDI note number / frequency conversion

package engine

import "math"

// A4Note and A4Freq anchor the standard equal-tempered convention
// (spec.md §6 "Numeric conventions"): A4 = 440 Hz at MIDI note 69.
const (
	A4Note = 69
	A4Freq = 440.0
)

// midiToFreq converts a MIDI note number (may be fractional, to
// support harmonic-ratio derived modes) to frequency in Hz.
func midiToFreq(note float64) float64 {
	return A4Freq * math.Pow(2, (note-A4Note)/12.0)
}

// freqToOmega converts a frequency in Hz to angular frequency in rad/s.
func freqToOmega(freqHz float64) float64 {
	return 2 * math.Pi * freqHz
}
