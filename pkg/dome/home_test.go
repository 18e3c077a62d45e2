package dome

import (
	"errors"
	"testing"
	"time"

	"github.com/oakmount-obs/domectl/pkg/hwio"
	"github.com/oakmount-obs/domectl/pkg/state"
)

func TestIsHomeSurfacesReadError(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	e.board = &deadInputBoard{Sim: sim}

	if _, err := e.IsHome(); err == nil {
		t.Fatal("a failed switch read must not pass as \"not home\"")
	}
}

func TestHomeDebouncerIgnoresBlips(t *testing.T) {
	e, _, clk := newTestEngine(t, nil) // 100ms window, 50ms fast poll
	deb := e.newHomeDebouncer()

	if deb.observe(true) {
		t.Error("first assertion accepted immediately")
	}
	clk.sleep(50 * time.Millisecond)
	// A dropout restarts the window.
	if deb.observe(false) {
		t.Error("released switch accepted")
	}
	clk.sleep(50 * time.Millisecond)
	if deb.observe(true) {
		t.Error("re-assertion accepted immediately after a blip")
	}
	clk.sleep(50 * time.Millisecond)
	if deb.observe(true) {
		t.Error("accepted before the window elapsed")
	}
	clk.sleep(50 * time.Millisecond)
	if !deb.observe(true) {
		t.Error("continuous assertion for the full window not accepted")
	}
}

// domeRig emulates the dome mechanics on top of the sim board: while the
// motor relay is energized each sleep moves the dome one tick in the
// commanded direction, the encoder counter counts it, and the home switch
// reflects a fixed region of absolute positions.
type domeRig struct {
	e   *Engine
	sim *hwio.Sim

	pos         int64 // absolute tick position, CW positive
	ticksPerRev int64
	homeLo      int64 // home region bounds, inclusive
	homeHi      int64

	wasHome bool
}

func newDomeRig(t *testing.T, startPos int64) *domeRig {
	t.Helper()
	e, sim, clk := newTestEngine(t, nil) // 360 ticks per rev both ways
	r := &domeRig{
		e:           e,
		sim:         sim,
		pos:         startPos,
		ticksPerRev: 360,
		homeLo:      0,
		homeHi:      5,
		wasHome:     startPos >= 0 && startPos <= 5,
	}
	e.Dome().Azimuth = float64(startPos)
	e.sleep = func(d time.Duration) {
		clk.sleep(d)
		if !sim.Output(e.cfg.Pins.DomeRotate) {
			return
		}
		if sim.Output(e.cfg.Pins.DomeDirection) {
			r.pos--
		} else {
			r.pos++
		}
		r.pos = (r.pos%r.ticksPerRev + r.ticksPerRev) % r.ticksPerRev
		sim.AdvanceCounter(counterEncoder, 1)
		home := r.atHome()
		if home && !r.wasHome {
			sim.AdvanceCounter(counterHome, 1)
		}
		r.wasHome = home
		sim.SetInput(e.cfg.Pins.HomeSwitch, home)
	}
	sim.SetInput(e.cfg.Pins.HomeSwitch, r.wasHome)
	return r
}

func (r *domeRig) atHome() bool {
	return r.pos >= r.homeLo && r.pos <= r.homeHi
}

func TestHome(t *testing.T) {
	r := newDomeRig(t, 300)

	if err := r.e.Home(); err != nil {
		t.Fatal(err)
	}
	if az := r.e.Azimuth(); az != 0 {
		t.Errorf("azimuth = %g, want the home azimuth 0", az)
	}
	if !r.e.Dome().IsHome {
		t.Error("home flag should be set")
	}
	if !r.atHome() {
		t.Errorf("dome physically at tick %d, outside the home region", r.pos)
	}
	if r.e.Dome().IsTurning {
		t.Error("turning flag should be cleared")
	}
	if r.e.Dome().EncoderTicks != 0 {
		t.Errorf("encoder should be re-referenced at home, got %d", r.e.Dome().EncoderTicks)
	}
	if r.e.Dome().HomeCount != 1 {
		t.Errorf("home count = %d, want 1 activation", r.e.Dome().HomeCount)
	}
}

func TestHomeTimesOutWithoutSwitch(t *testing.T) {
	e, sim, clk := newTestEngine(t, nil)
	driveOnSleep(e, sim, clk) // encoder turns, the switch never asserts
	e.Dome().Azimuth = 90

	err := e.Home()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
	if e.Dome().IsTurning {
		t.Error("turning flag should be cleared after a timed out homing")
	}
	if sim.Output(e.cfg.Pins.DomeRotate) {
		t.Error("motor relay should be released")
	}
}

func TestSummarizeSweeps(t *testing.T) {
	// One pass each way across a region about one tick wide of asymmetry:
	// the CW crossing sees it from 40 to 46, the CCW one from 38 to 44.
	sweeps := []Sweep{
		{Direction: state.CW, Entry: 40, Exit: 46},
		{Direction: state.CCW, Entry: 38, Exit: 44},
	}
	width, mid := summarizeSweeps(sweeps)
	if width != 6 {
		t.Errorf("avg width = %g, want 6", width)
	}
	if mid < 41 || mid > 43 {
		t.Errorf("midpoint = %g, want within 42±1", mid)
	}
}

func TestCalibrateHomeNeedsThreePasses(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	if _, err := e.CalibrateHome(2); err == nil {
		t.Fatal("two passes accepted")
	}
}

func TestCalibrateHome(t *testing.T) {
	r := newDomeRig(t, 300) // region spans ticks 0..5, six positions wide

	cal, err := r.e.CalibrateHome(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(cal.Sweeps) != 6 {
		t.Fatalf("sweeps = %d, want 6 (3 passes, both directions)", len(cal.Sweeps))
	}
	for _, s := range cal.Sweeps {
		if s.Width() != 6 {
			t.Errorf("%s sweep width = %d, want 6", s.Direction, s.Width())
		}
	}
	if cal.AvgWidth != 6 {
		t.Errorf("avg width = %g, want 6", cal.AvgWidth)
	}
	if !r.atHome() {
		t.Errorf("dome should park inside the home region, at tick %d", r.pos)
	}
	if az := r.e.Azimuth(); az != 0 {
		t.Errorf("azimuth = %g, want re-referenced to home", az)
	}
	if r.sim.Output(r.e.cfg.Pins.DomeRotate) {
		t.Error("motor relay should be released")
	}
}

func TestMeasureRevolution(t *testing.T) {
	r := newDomeRig(t, 300)

	ticks, err := r.e.MeasureRevolution(state.CW)
	if err != nil {
		t.Fatal(err)
	}
	// Homing settles 2 ticks into the 6-tick region (debounce creep), so
	// the measured lap back to the leading edge is 2 short of 360.
	if ticks != 358 {
		t.Errorf("revolution = %d ticks, want 358", ticks)
	}
	if r.e.Dome().IsTurning {
		t.Error("turning flag should be cleared")
	}
}

// deadInputBoard fails every digital input read.
type deadInputBoard struct {
	*hwio.Sim
}

func (b *deadInputBoard) ReadInput(ch int) (bool, error) {
	return false, errors.New("input read failed")
}
