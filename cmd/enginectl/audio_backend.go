// audio_backend.go - OTO v3 audio output, adapted from the teacher's
// audio_backend_oto.go: same pull-model Read callback and lock-free
// atomic.Pointer publish of the render target, retargeted from
// *SoundChip.ReadSampleFromRing to engine.Engine.Render.

package main

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"github.com/intuitionamiga/modalengine"
)

type otoPlayer struct {
	ctx       *oto.Context
	player    *oto.Player
	eng       atomic.Pointer[engine.Engine] // lock-free for the Read hot path
	sampleBuf []float32
	scratchR  []float32
	started   bool
	mutex     sync.Mutex // setup/control operations only, never the Read path
}

func newOtoPlayer(sampleRate int) (*otoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &otoPlayer{ctx: ctx}, nil
}

func (op *otoPlayer) setupPlayer(e *engine.Engine) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.eng.Store(e)
	op.player = op.ctx.NewPlayer(op)
	op.sampleBuf = make([]float32, 4096)
	op.scratchR = make([]float32, 4096)
}

func (op *otoPlayer) Read(p []byte) (n int, err error) {
	e := op.eng.Load()
	if e == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	numSamples := len(p) / 4
	if len(op.sampleBuf) < numSamples {
		op.sampleBuf = make([]float32, numSamples)
		op.scratchR = make([]float32, numSamples)
	}
	left := op.sampleBuf[:numSamples]
	right := op.scratchR[:numSamples]

	e.Render(left, right, numSamples)

	for i := 0; i < numSamples; i++ {
		s := left[i]
		off := i * 4
		bits := math.Float32bits(s)
		p[off+0] = byte(bits)
		p[off+1] = byte(bits >> 8)
		p[off+2] = byte(bits >> 16)
		p[off+3] = byte(bits >> 24)
	}
	return len(p), nil
}

func (op *otoPlayer) start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *otoPlayer) stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started && op.player != nil {
		op.player.Close()
		op.started = false
	}
}
