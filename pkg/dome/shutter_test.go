package dome

import (
	"errors"
	"testing"

	"github.com/oakmount-obs/domectl/pkg/state"
)

func TestOpenShutterRequiresHome(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, false)

	err := e.OpenShutter()
	if !errors.Is(err, ErrNotAtHome) {
		t.Fatalf("got %v, want ErrNotAtHome", err)
	}
	if e.Dome().Shutter.Moving() {
		t.Error("interlock failure must not mark the shutter moving")
	}
	if sim.Output(e.cfg.Pins.ShutterMove) || sim.Output(e.cfg.Pins.ShutterDirection) {
		t.Error("interlock failure must not touch the relays")
	}
}

func TestOpenShutterHomeReadError(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	e.board = &deadInputBoard{Sim: sim}

	if err := e.OpenShutter(); err == nil {
		t.Fatal("a failed home read must not let the shutter move")
	}
	if sim.Output(e.cfg.Pins.ShutterMove) {
		t.Error("shutter relay energized despite the failed interlock check")
	}
}

func TestShutterMutualExclusion(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)

	if err := e.OpenShutter(); err != nil {
		t.Fatal(err)
	}
	if err := e.CloseShutter(); !errors.Is(err, ErrShutterBusy) {
		t.Fatalf("got %v, want ErrShutterBusy", err)
	}
	if err := e.OpenShutter(); !errors.Is(err, ErrShutterBusy) {
		t.Fatalf("second open: got %v, want ErrShutterBusy", err)
	}
	if e.Dome().Shutter != state.ShutterOpening {
		t.Errorf("shutter = %s, the first operation should still be underway", e.Dome().Shutter)
	}
}

func TestOpenShutterRelayPolarity(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)

	if err := e.OpenShutter(); err != nil {
		t.Fatal(err)
	}
	// Opening is the direction relay at rest.
	if sim.Output(e.cfg.Pins.ShutterDirection) {
		t.Error("direction relay should be released for opening")
	}
	if !sim.Output(e.cfg.Pins.ShutterMove) {
		t.Error("move relay should be energized")
	}
	if e.Dome().Shutter != state.ShutterOpening {
		t.Errorf("shutter = %s, want opening", e.Dome().Shutter)
	}
}

func TestCloseShutterRelayPolarity(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)
	e.Dome().Shutter = state.ShutterOpen

	if err := e.CloseShutter(); err != nil {
		t.Fatal(err)
	}
	if !sim.Output(e.cfg.Pins.ShutterDirection) {
		t.Error("direction relay should be energized for closing")
	}
	if !sim.Output(e.cfg.Pins.ShutterMove) {
		t.Error("move relay should be energized")
	}
	if e.Dome().Shutter != state.ShutterClosing {
		t.Errorf("shutter = %s, want closing", e.Dome().Shutter)
	}
}

func TestStopShutterMidTravel(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)

	if err := e.OpenShutter(); err != nil {
		t.Fatal(err)
	}
	e.StopShutter()

	if sim.Output(e.cfg.Pins.ShutterMove) || sim.Output(e.cfg.Pins.ShutterDirection) {
		t.Error("relays should be released")
	}
	// Nothing says where the shutter stopped; only a completed travel may
	// claim open or closed.
	if e.Dome().Shutter != state.ShutterUnknown {
		t.Errorf("shutter = %s, want unknown", e.Dome().Shutter)
	}
}

func TestStopShutterKeepsTerminalState(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	e.Dome().Shutter = state.ShutterOpen

	e.StopShutter()
	if e.Dome().Shutter != state.ShutterOpen {
		t.Errorf("shutter = %s, a stop at rest must not discard the known state", e.Dome().Shutter)
	}
}

func TestOpenFullSequence(t *testing.T) {
	e, sim, clk := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)

	if err := e.Open(); err != nil {
		t.Fatal(err)
	}
	if e.Dome().Shutter != state.ShutterOpen {
		t.Errorf("shutter = %s, want open", e.Dome().Shutter)
	}
	if sim.Output(e.cfg.Pins.ShutterMove) || sim.Output(e.cfg.Pins.ShutterDirection) {
		t.Error("relays should be released after the travel time")
	}
	// 30s travel at 500ms polls.
	if want := 60; clk.sleeps != want {
		t.Errorf("slept %d times, want %d", clk.sleeps, want)
	}
}

func TestCloseFullSequence(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)
	e.Dome().Shutter = state.ShutterOpen

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if e.Dome().Shutter != state.ShutterClosed {
		t.Errorf("shutter = %s, want closed", e.Dome().Shutter)
	}
	if sim.Output(e.cfg.Pins.ShutterMove) {
		t.Error("move relay should be released")
	}
}
