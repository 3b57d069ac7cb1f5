// coupling.go - diffusive inter-voice coupling applied each control tick

package engine

// CouplingDriver applies one control tick's worth of diffusive coupling
// forcing to every voice in the pool, using only mode 0's complex state
// (spec.md §4.5). It is the sole owner of the cross-voice traversal,
// modeled over voice-pool indices rather than back-references (spec.md §9).
type CouplingDriver struct {
	mode0 []complex128 // scratch snapshot, reused across ticks
}

// Init preallocates the scratch snapshot for a pool of the given size.
// Must be called from the control thread during engine setup — Step
// itself must never allocate, since it runs on the audio path.
func (d *CouplingDriver) Init(poolSize int) {
	d.mode0 = make([]complex128, poolSize)
}

// Step computes u_0[i] for every voice i in the pool from its
// neighbors' mode-0 state and applies it via Voice.ApplyCoupling.
// Coupling is deliberately NOT gated on the target's own IsActive(): a
// voice silent per the §4.1 state machine still has a live mode 0 (its
// Mode.Active flag never clears) and spec.md's seed scenario 5
// requires exactly this — a poke on one voice must be able to wake a
// silent neighbor through the matrix.
func (d *CouplingDriver) Step(pool *VoicePool, matrix *CouplingMatrix, kappa float64, mode CouplingMode) {
	if matrix == nil || matrix.V == 0 || kappa == 0 {
		return
	}

	v := pool.Len()
	snapshot := d.mode0[:v]
	for i := 0; i < v; i++ {
		snapshot[i] = pool.Voice(i).Mode0State()
	}

	for i := 0; i < v; i++ {
		var u0 complex128
		for j := 0; j < v; j++ {
			w := matrix.at(i, j)
			if w == 0 || j == i {
				continue
			}
			diff := snapshot[j] - snapshot[i]
			var term complex128
			if mode == CouplingSigned {
				term = diff
			} else {
				term = complex(cmplxAbs(diff), 0)
			}
			u0 += complex(kappa*w, 0) * term
		}
		pool.Voice(i).ApplyCoupling(u0)
	}
}
