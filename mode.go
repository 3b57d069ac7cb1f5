// mode.go - complex damped oscillator and the fixed four-mode bank

package engine

// Personality distinguishes a mode bank that behaves as a passive
// resonator (gamma > 0, decays without further excitation) from one
// that behaves as a self-oscillator (gamma may go negative and the
// state is held to a ceiling instead of decaying).
type Personality int

const (
	Resonator Personality = iota
	SelfOscillator
)

// NumModes is the fixed width of a ModeBank (spec.md §3: "ordered
// sequence of exactly 4 Modes").
const NumModes = 4

// selfOscCeilingRatio bounds |a| for self-oscillator modes to
// 1.2 times the mode's audio weight, per spec.md §4.1.
const selfOscCeilingRatio = 1.2

// Mode is one complex damped harmonic oscillator a*e^((-gamma+i*omega)t).
type Mode struct {
	Omega  float64 // angular frequency, rad/s
	Gamma  float64 // damping; >0 for a resonator mode
	Weight float64 // audio weight in [0,1]; gates output, not dynamics
	Active bool
	State  complex128 // a
}

// reset zeroes the complex state without touching frequency/damping/weight.
func (m *Mode) reset() {
	m.State = 0
}

// ModeBank is the ordered bank of four modes owned by one voice, plus
// the excitation envelope and bookkeeping state shared by all four.
type ModeBank struct {
	Modes       [NumModes]Mode
	Envelope    excitationEnvelope
	Step        uint64
	Personality Personality

	state         bankState
	silentElapsed float64
}

type bankState int

const (
	bankIdle bankState = iota
	bankExciting
	bankRinging
	bankSilent
)

// resetState zeroes all mode complex state (voice reset, per spec.md
// §3 Voice lifecycle) without touching frequency/damping/weight/personality.
func (b *ModeBank) resetState() {
	for i := range b.Modes {
		b.Modes[i].reset()
	}
	b.Envelope = excitationEnvelope{}
	b.state = bankIdle
	b.silentElapsed = 0
	b.Step = 0
}

// maxMagnitude returns the largest |a_k| across modes, regardless of
// weight — weight gates output, not the silence/dynamics the state
// machine tracks (spec.md §4.1 tie-break).
func (b *ModeBank) maxMagnitude() float64 {
	max := 0.0
	for i := range b.Modes {
		if mag := cmplxAbs(b.Modes[i].State); mag > max {
			max = mag
		}
	}
	return max
}

// isSilent reports whether the bank has been below eps for at least
// tauSilence seconds.
func (b *ModeBank) isSilent() bool {
	return b.state == bankSilent
}
