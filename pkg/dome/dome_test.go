package dome

import (
	"errors"
	"testing"
	"time"

	"github.com/oakmount-obs/domectl/pkg/config"
	"github.com/oakmount-obs/domectl/pkg/hwio"
	"github.com/oakmount-obs/domectl/pkg/state"
)

// testClock advances fake time with every sleep, so blocking operations
// run instantly under test.
type testClock struct {
	t      time.Time
	sleeps int
}

func (c *testClock) now() time.Time {
	return c.t
}

func (c *testClock) sleep(d time.Duration) {
	c.t = c.t.Add(d)
	c.sleeps++
}

func newTestEngine(t *testing.T, mutate func(*config.Config)) (*Engine, *hwio.Sim, *testClock) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	sim := hwio.NewSim()
	if err := sim.Open(); err != nil {
		t.Fatal(err)
	}

	e := New(cfg, sim, state.Fresh())
	clk := &testClock{t: time.Unix(1700000000, 0)}
	e.sleep = clk.sleep
	e.now = clk.now
	return e, sim, clk
}

// driveOnSleep makes the dome advance one encoder tick per sleep while
// the motor relay is energized, which is how the polling loops observe
// motion without wall-clock time.
func driveOnSleep(e *Engine, sim *hwio.Sim, clk *testClock) {
	motorCh := e.cfg.Pins.DomeRotate
	e.sleep = func(d time.Duration) {
		clk.sleep(d)
		if sim.Output(motorCh) {
			sim.AdvanceCounter(counterEncoder, 1)
		}
	}
}

func TestConnectPreparesCounters(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.AdvanceCounter(counterEncoder, 999)
	sim.AdvanceCounter(counterHome, 7)

	if err := e.Connect(); err != nil {
		t.Fatal(err)
	}

	if got := sim.Debounce(1); got != e.cfg.CounterDebounce() {
		t.Errorf("counter 1 debounce = %s, want %s", got, e.cfg.CounterDebounce())
	}
	if got := sim.Debounce(2); got != e.cfg.CounterDebounce() {
		t.Errorf("counter 2 debounce = %s, want %s", got, e.cfg.CounterDebounce())
	}
	if sim.Counter(counterEncoder) != 0 || sim.Counter(counterHome) != 0 {
		t.Error("counters should be cleared on connect")
	}
	if e.Dome().EncoderTicks != 0 {
		t.Errorf("EncoderTicks = %d, want 0", e.Dome().EncoderTicks)
	}
	if !e.Dome().Connected {
		t.Error("dome should be marked connected")
	}
}

func TestConnectProbesHomeSwitch(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)

	if err := e.Connect(); err != nil {
		t.Fatal(err)
	}
	if !e.Dome().IsHome {
		t.Error("home switch probe should land in the record")
	}
}

func TestDisconnectStopsMotion(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	if err := e.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := e.MoveCW(); err != nil {
		t.Fatal(err)
	}

	e.Disconnect()

	if e.Dome().IsTurning {
		t.Error("rotation flag should be cleared")
	}
	if e.Dome().Connected {
		t.Error("dome should be marked disconnected")
	}
	if sim.Output(e.cfg.Pins.DomeRotate) || sim.Output(e.cfg.Pins.DomeDirection) {
		t.Error("relays should be released")
	}
}

func TestCurrentAzimuthLive(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	if err := e.MoveCW(); err != nil {
		t.Fatal(err)
	}
	sim.AdvanceCounter(counterEncoder, 40)

	az, err := e.CurrentAzimuth()
	if err != nil {
		t.Fatal(err)
	}
	if az != 40 {
		t.Errorf("live azimuth = %g, want 40", az)
	}
	// The fixed position only moves on stop.
	if e.Azimuth() != 0 {
		t.Errorf("fixed azimuth = %g, want 0", e.Azimuth())
	}
}

func TestCurrentAzimuthHomeOverride(t *testing.T) {
	e, sim, _ := newTestEngine(t, func(c *config.Config) {
		c.Calibration.HomePositionDeg = 225
	})
	sim.AdvanceCounter(counterEncoder, 40)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)

	az, err := e.CurrentAzimuth()
	if err != nil {
		t.Fatal(err)
	}
	if az != 225 {
		t.Errorf("azimuth at home = %g, want 225", az)
	}
}

func TestPollUntilImmediate(t *testing.T) {
	e, _, clk := newTestEngine(t, nil)
	err := e.pollUntil(time.Second, 0, func() (bool, error) { return true, nil })
	if err != nil {
		t.Fatal(err)
	}
	if clk.sleeps != 0 {
		t.Errorf("done-at-once poll slept %d times", clk.sleeps)
	}
}

func TestPollUntilTimeout(t *testing.T) {
	e, _, clk := newTestEngine(t, nil)
	err := e.pollUntil(time.Second, 3*time.Second, func() (bool, error) { return false, nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
	if clk.sleeps != 3 {
		t.Errorf("slept %d times, want 3", clk.sleeps)
	}
}

func TestPollUntilPropagatesError(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	boom := errors.New("boom")
	calls := 0
	err := e.pollUntil(time.Second, 0, func() (bool, error) {
		calls++
		if calls == 2 {
			return false, boom
		}
		return false, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the poll error", err)
	}
}

func TestReadDiagnostics(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.AdvanceCounter(counterEncoder, 123)
	sim.AdvanceCounter(counterHome, 2)
	e.Dome().EncoderErrors = 5

	d, err := e.ReadDiagnostics()
	if err != nil {
		t.Fatal(err)
	}
	if d.EncoderTicks != 123 || d.HomeCount != 2 || d.EncoderErrors != 5 {
		t.Errorf("diagnostics = %+v", d)
	}
	if e.Dome().HomeCount != 2 {
		t.Errorf("home count not folded into record: %d", e.Dome().HomeCount)
	}
}
