// console.go - tcell-driven interactive control console: note on/off,
// poke, topology, mute. Grounded on the teacher's terminal_host.go
// event-loop shape (poll, dispatch on key, redraw), replacing the
// teacher's machine-monitor keymap with synth control-thread calls.

package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/intuitionamiga/modalengine"
)

type console struct {
	screen tcell.Screen
	eng    *engine.Engine
	topo   engine.TopologyKind
	kappa  float64
	muted  bool
}

func newConsole(e *engine.Engine) (*console, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.SetStyle(tcell.StyleDefault)
	return &console{screen: screen, eng: e, kappa: 0.2}, nil
}

// Run blocks until the user quits ('q' or Ctrl-C), draining key events
// and dispatching them to the engine's control-thread entry points. The
// caller's audio goroutine keeps pulling Render concurrently; nothing
// here touches engine state the audio thread reads without going
// through Engine's own exported methods.
func (c *console) Run() error {
	defer c.screen.Fini()
	c.draw()
	for {
		ev := c.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			c.screen.Sync()
			c.draw()
		case *tcell.EventKey:
			if c.dispatch(ev) {
				return nil
			}
			c.draw()
		}
	}
}

// dispatch returns true when the console should exit.
func (c *console) dispatch(ev *tcell.EventKey) bool {
	switch {
	case ev.Key() == tcell.KeyCtrlC:
		return true
	case ev.Rune() == 'q':
		return true
	case ev.Rune() >= '1' && ev.Rune() <= '8':
		note := 60 + int(ev.Rune()-'1')
		_ = c.eng.NoteOn(note, 0.9)
	case ev.Rune() == ' ':
		c.releaseAll()
	case ev.Rune() == 'p':
		_ = c.eng.Poke(0, 1.0, -1, [engine.NumModes]float64{1, 1, 1, 1})
	case ev.Rune() == 'm':
		c.muted = !c.muted
		c.eng.Mute(c.muted)
	case ev.Rune() == 'r':
		c.setTopology(engine.TopologyRing)
	case ev.Rune() == 'w':
		c.setTopology(engine.TopologySmallWorld)
	case ev.Rune() == 'h':
		c.setTopology(engine.TopologyHubSpoke)
	case ev.Rune() == 'n':
		c.setTopology(engine.TopologyNone)
	}
	return false
}

func (c *console) setTopology(kind engine.TopologyKind) {
	c.topo = kind
	_ = c.eng.SetTopology(engine.TopologySpec{Kind: kind, Rewire: 0.1, Hub: 0, P: 0.3}, c.kappa)
}

func (c *console) releaseAll() {
	for note := 60; note < 68; note++ {
		_ = c.eng.NoteOff(note)
	}
}

func (c *console) draw() {
	c.screen.Clear()
	c.puts(0, 0, "enginectl -- modal synthesis console")
	c.puts(0, 2, "1-8: note on (60-67)   space: release all   p: poke voice 0")
	c.puts(0, 3, "n/r/w/h: topology none/ring/small-world/hub-spoke   m: mute   q: quit")
	c.puts(0, 5, fmt.Sprintf("topology: %d   kappa: %.2f   muted: %v", c.topo, c.kappa, c.muted))
	snaps := c.eng.Snapshot()
	for i, s := range snaps {
		line := fmt.Sprintf("voice %2d  note=%3d  active=%v  mag=%.4f  gen=%d", s.Index, s.Note, s.Active, s.Magnitude, s.Generation)
		c.puts(0, 7+i, line)
	}
	c.screen.Show()
}

func (c *console) puts(x, y int, s string) {
	for i, r := range s {
		c.screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
