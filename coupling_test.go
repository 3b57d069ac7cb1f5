package engine

import "testing"

// Seed scenario 5 (spec.md §8 "Coupling drives silent neighbor"): V=2,
// Complete, kappa=0.5. Voice 0 receives a poke; voice 1 is silent at
// t=0. After 200ms, |mode0(1)| > 0.
func TestCouplingDrivesSilentNeighbor(t *testing.T) {
	pool, err := NewVoicePool(2, 48000)
	if err != nil {
		t.Fatal(err)
	}
	rng := NewRand(1)
	matrix, err := BuildCouplingMatrix(TopologySpec{Kind: TopologyComplete}, 2, rng)
	if err != nil {
		t.Fatal(err)
	}

	if pool.Voice(1).IsActive() {
		t.Fatal("voice 1 should be silent at t=0")
	}
	if mag := cmplxAbs(pool.Voice(1).Mode0State()); mag != 0 {
		t.Fatalf("voice 1 mode0 should start at 0, got magnitude %v", mag)
	}

	pool.NoteOn(60, 1.0, rng)

	var driver CouplingDriver
	driver.Init(2)
	const kappa = 0.5
	ticks := int(0.2 / DefaultControlDt) // 200ms of control ticks
	for i := 0; i < ticks; i++ {
		driver.Step(pool, matrix, kappa, CouplingMagnitude)
		for vi := 0; vi < pool.Len(); vi++ {
			pool.Voice(vi).Tick(DefaultControlDt)
		}
	}

	if mag := cmplxAbs(pool.Voice(1).Mode0State()); mag <= 0 {
		t.Fatalf("after 200ms of coupling, voice 1 mode0 magnitude = %v, want > 0", mag)
	}
}

func TestCouplingNoOpWhenKappaZero(t *testing.T) {
	pool, err := NewVoicePool(2, 48000)
	if err != nil {
		t.Fatal(err)
	}
	rng := NewRand(1)
	matrix, err := BuildCouplingMatrix(TopologySpec{Kind: TopologyComplete}, 2, rng)
	if err != nil {
		t.Fatal(err)
	}
	pool.NoteOn(60, 1.0, rng)

	var driver CouplingDriver
	driver.Init(2)
	for i := 0; i < 100; i++ {
		driver.Step(pool, matrix, 0, CouplingMagnitude)
		for vi := 0; vi < pool.Len(); vi++ {
			pool.Voice(vi).Tick(DefaultControlDt)
		}
	}

	if mag := cmplxAbs(pool.Voice(1).Mode0State()); mag != 0 {
		t.Fatalf("kappa=0 should leave the unpoked neighbor untouched, got magnitude %v", mag)
	}
}

func TestCouplingSignedModeDiffersFromMagnitude(t *testing.T) {
	pool, err := NewVoicePool(2, 48000)
	if err != nil {
		t.Fatal(err)
	}
	rng := NewRand(1)
	matrix, err := BuildCouplingMatrix(TopologySpec{Kind: TopologyComplete}, 2, rng)
	if err != nil {
		t.Fatal(err)
	}
	pool.Voice(0).bank.Modes[0].State = complex(1, 0)
	pool.Voice(1).bank.Modes[0].State = complex(-1, 0)

	var magDriver, signedDriver CouplingDriver
	magDriver.Init(2)
	signedDriver.Init(2)
	magDriver.Step(pool, matrix, 0.5, CouplingMagnitude)
	u0Mag := pool.Voice(0).pendingCoupling
	pool.Voice(0).pendingCoupling = 0

	signedDriver.Step(pool, matrix, 0.5, CouplingSigned)
	u0Signed := pool.Voice(0).pendingCoupling

	if u0Mag == u0Signed {
		t.Fatal("magnitude and signed coupling modes should diverge for voices with opposite-sign state")
	}
}
