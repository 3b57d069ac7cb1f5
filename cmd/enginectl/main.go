// main.go - enginectl: reference host process wiring the modal
// synthesis engine to OTO audio output and a tcell console. An errgroup
// runs the foreground console loop while OTO pulls audio on its own
// thread; the audio backend is stopped when the console loop returns.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/intuitionamiga/modalengine"
)

func main() {
	sampleRate := flag.Int("rate", 44100, "audio sample rate in Hz")
	polyphony := flag.Int("polyphony", engine.DefaultPolyphony, "voice pool capacity")
	flag.Parse()

	if err := run(*sampleRate, *polyphony); err != nil {
		log.Fatalf("enginectl: %v", err)
	}
}

func run(sampleRate, polyphony int) error {
	e, err := engine.NewEngine(float64(sampleRate), polyphony)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	player, err := newOtoPlayer(sampleRate)
	if err != nil {
		return fmt.Errorf("audio backend init: %w", err)
	}
	player.setupPlayer(e)
	player.start()
	defer player.stop()

	con, err := newConsole(e)
	if err != nil {
		return fmt.Errorf("console init: %w", err)
	}

	_, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var g errgroup.Group
	g.Go(con.Run)
	return g.Wait()
}
