// topology.go - coupling topology generators and weight-matrix normalization

package engine

// TopologyKind is the tag of the TopologySpec variant (spec.md §3).
type TopologyKind int

const (
	TopologyNone TopologyKind = iota
	TopologyRing
	TopologySmallWorld
	TopologyClustered
	TopologyHubSpoke
	TopologyRandom
	TopologyComplete
)

// CouplingMode selects whether the coupling step uses the magnitude of
// the complex neighbor difference (the spec's excitatory-only default)
// or the signed difference, an opt-in extension flagged in spec.md §9.
type CouplingMode int

const (
	CouplingMagnitude CouplingMode = iota
	CouplingSigned
)

// TopologySpec describes how to build a fresh coupling matrix
// (spec.md §3). Only the fields relevant to Kind are read.
type TopologySpec struct {
	Kind        TopologyKind
	Rewire      float64 // SmallWorld: rewire probability in [0,1]
	ClusterSize int     // Clustered: cluster size >= 1
	Hub         int     // HubSpoke: hub index in [0,V)
	P           float64 // Random: edge probability in [0,1]
}

// CouplingMatrix is a V x V row-normalized diffusive operator
// (spec.md §3). Row-major, flattened for cache-friendly scanning.
type CouplingMatrix struct {
	V       int
	weights []float64
}

func newCouplingMatrix(v int) *CouplingMatrix {
	return &CouplingMatrix{V: v, weights: make([]float64, v*v)}
}

func (m *CouplingMatrix) at(i, j int) float64 {
	return m.weights[i*m.V+j]
}

func (m *CouplingMatrix) set(i, j int, w float64) {
	m.weights[i*m.V+j] = w
}

// BuildCouplingMatrix constructs a fresh matrix for the given spec and
// voice count, then row-normalizes it (spec.md §4.5). rng is only used
// by SmallWorld and Random and must be the control-thread generator.
func BuildCouplingMatrix(spec TopologySpec, v int, rng *Rand) (*CouplingMatrix, error) {
	if v <= 0 {
		return nil, newError(InvalidParameter, "voice pool capacity must be positive, got %d", v)
	}
	if spec.Kind == TopologyHubSpoke && (spec.Hub < 0 || spec.Hub >= v) {
		return nil, newError(InvalidParameter, "hub index %d out of range [0,%d)", spec.Hub, v)
	}

	m := newCouplingMatrix(v)

	switch spec.Kind {
	case TopologyNone:
		// all zero; nothing to do

	case TopologyRing:
		for i := 0; i < v; i++ {
			m.set(i, (i-1+v)%v, 1)
			m.set(i, (i+1)%v, 1)
		}

	case TopologySmallWorld:
		for i := 0; i < v; i++ {
			m.set(i, (i-1+v)%v, 1)
			m.set(i, (i+1)%v, 1)
		}
		// Each i in [0,v) names one distinct ring edge {i, (i+1)%v} — the
		// cycle has exactly v undirected edges, one per i, including the
		// wraparound edge {v-1, 0}. spec.md §4.5 treats every one of
		// these as an independent rewrite candidate, so none are skipped.
		for i := 0; i < v; i++ {
			j := (i + 1) % v
			if rng.Float64() >= spec.Rewire {
				continue
			}
			target := rewireTarget(rng, v, i)
			m.set(i, j, 0)
			m.set(j, i, 0)
			m.set(i, target, 1)
			m.set(target, i, 1)
		}

	case TopologyClustered:
		c := spec.ClusterSize
		if c < 1 {
			c = 1
		}
		blockStarts := []int{}
		for start := 0; start < v; start += c {
			blockStarts = append(blockStarts, start)
			end := start + c
			if end > v {
				end = v
			}
			for i := start; i < end; i++ {
				for j := start; j < end; j++ {
					if i != j {
						m.set(i, j, 1)
					}
				}
			}
		}
		for bi := 0; bi+1 < len(blockStarts); bi++ {
			a, b := blockStarts[bi], blockStarts[bi+1]
			m.set(a, b, 0.5)
			m.set(b, a, 0.5)
		}

	case TopologyHubSpoke:
		for i := 0; i < v; i++ {
			if i == spec.Hub {
				continue
			}
			m.set(spec.Hub, i, 1)
			m.set(i, spec.Hub, 1)
		}

	case TopologyRandom:
		for i := 0; i < v; i++ {
			for j := i + 1; j < v; j++ {
				if rng.Float64() < spec.P {
					m.set(i, j, 1)
					m.set(j, i, 1)
				}
			}
		}

	case TopologyComplete:
		for i := 0; i < v; i++ {
			for j := 0; j < v; j++ {
				if i != j {
					m.set(i, j, 1)
				}
			}
		}

	default:
		return nil, newError(InvalidParameter, "unknown topology kind %d", spec.Kind)
	}

	for i := 0; i < v; i++ {
		m.set(i, i, 0)
	}
	m.normalize()
	return m, nil
}

func rewireTarget(rng *Rand, v int, exclude int) int {
	for {
		t := rng.IntN(v)
		if t != exclude {
			return t
		}
	}
}

// normalize divides each non-zero row by its row sum; zero rows stay
// zero (spec.md §4.5).
func (m *CouplingMatrix) normalize() {
	for i := 0; i < m.V; i++ {
		sum := 0.0
		for j := 0; j < m.V; j++ {
			sum += m.at(i, j)
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < m.V; j++ {
			if w := m.at(i, j); w != 0 {
				m.set(i, j, w/sum)
			}
		}
	}
}
