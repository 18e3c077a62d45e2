package dome

import (
	"math"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oakmount-obs/domectl/pkg/state"
)

// Sweep sizing for home calibration, in degrees of dome travel. The
// contact region of a real switch spans a few degrees; a 30 degree sweep
// crosses it with margin on both sides.
const (
	calBackoffDeg = 15.0
	calSweepDeg   = 30.0
)

// IsHome reads the home switch. Read failures surface as errors rather
// than "not home": masking a dead switch would let the shutter drive
// engage away from the docking contacts.
func (e *Engine) IsHome() (bool, error) {
	home, err := e.board.ReadInput(e.cfg.Pins.HomeSwitch)
	if err != nil {
		return false, pkgerrors.Wrap(err, "reading home switch")
	}
	e.dome.IsHome = home
	return home, nil
}

// homeDebouncer accepts the home switch only after continuous assertion
// for the debounce window. Dropouts restart the window.
type homeDebouncer struct {
	window   time.Duration
	now      func() time.Time
	asserted bool
	since    time.Time
}

func (e *Engine) newHomeDebouncer() *homeDebouncer {
	return &homeDebouncer{window: e.cfg.HomeDebounce(), now: e.now}
}

func (d *homeDebouncer) observe(home bool) bool {
	if !home {
		d.asserted = false
		return false
	}
	if !d.asserted {
		d.asserted = true
		d.since = d.now()
		return false
	}
	return d.now().Sub(d.since) >= d.window
}

// waitForHome polls the switch at the fast homing rate until a debounced
// assertion. The caller owns the motor.
func (e *Engine) waitForHome(timeout time.Duration) error {
	deb := e.newHomeDebouncer()
	return e.pollUntil(e.cfg.HomePollFast(), timeout, func() (bool, error) {
		home, err := e.IsHome()
		if err != nil {
			return false, err
		}
		return deb.observe(home), nil
	})
}

// noteEncoderProgress tracks whether the encoder advances while the motor
// runs. A stretch of encoder_error_threshold polls without a new tick
// counts one encoder error; motion is not interrupted, the count shows up
// in diagnostics.
func (e *Engine) noteEncoderProgress(ticks int64) {
	if ticks > e.lastTicks {
		e.lastTicks = ticks
		e.stallPolls = 0
		return
	}
	e.stallPolls++
	if e.stallPolls == e.cfg.Calibration.EncoderErrorThreshold {
		e.dome.EncoderErrors++
		logrus.Warnf("Encoder made no progress for %d polls", e.stallPolls)
	}
}

// Sweep records one crossing of the home region: the encoder ticks from
// sweep start at which the switch asserted and released.
type Sweep struct {
	Direction state.Direction `json:"direction"`
	Entry     int64           `json:"entry"`
	Exit      int64           `json:"exit"`
}

// Width is the region size seen by this sweep, in ticks.
func (s Sweep) Width() int64 {
	return s.Exit - s.Entry
}

// Midpoint is the region center seen by this sweep, in ticks from sweep
// start.
func (s Sweep) Midpoint() float64 {
	return float64(s.Entry+s.Exit) / 2
}

// HomeCalibration aggregates the sweeps of a calibration run. The edges
// seen by CW and CCW crossings differ, so only the average over both
// directions is a stable reference.
type HomeCalibration struct {
	Sweeps   []Sweep `json:"sweeps"`
	AvgWidth float64 `json:"avgWidth"`
	Midpoint float64 `json:"midpoint"`
}

// summarizeSweeps averages the region widths and midpoints over all
// sweeps of a calibration run.
func summarizeSweeps(sweeps []Sweep) (avgWidth, midpoint float64) {
	var wsum, msum float64
	for _, s := range sweeps {
		wsum += float64(s.Width())
		msum += s.Midpoint()
	}
	n := float64(len(sweeps))
	return wsum / n, msum / n
}

// sweepHome crosses the home region in dir for exactly length ticks,
// recording the raw switch edges on the way. The encoder counter is reset
// first so edges are in sweep-local ticks.
func (e *Engine) sweepHome(dir state.Direction, length int64) (Sweep, error) {
	s := Sweep{Direction: dir, Entry: -1, Exit: -1}
	if err := e.board.ResetCounter(counterEncoder); err != nil {
		return s, pkgerrors.Wrap(err, "resetting encoder for sweep")
	}
	e.tickMark = 0
	e.dome.EncoderTicks = 0

	if err := e.setDirection(dir); err != nil {
		return s, err
	}
	if err := e.startRotation(); err != nil {
		return s, err
	}
	prev := false
	err := e.pollUntil(e.cfg.HomePollFast(), e.cfg.MaxRotationTime(), func() (bool, error) {
		ticks, err := e.board.ReadCounter(counterEncoder)
		if err != nil {
			return false, pkgerrors.Wrap(err, "reading encoder")
		}
		home, err := e.IsHome()
		if err != nil {
			return false, err
		}
		if home && !prev && s.Entry < 0 {
			s.Entry = ticks
		}
		if !home && prev && s.Entry >= 0 && s.Exit < 0 {
			s.Exit = ticks
		}
		prev = home
		return ticks >= length, nil
	})
	e.StopRotation()
	if err != nil {
		return s, err
	}
	if s.Entry < 0 || s.Exit < 0 {
		return s, pkgerrors.Errorf("home region not crossed within %d ticks %s", length, dir)
	}
	logrus.WithFields(logrus.Fields{
		"direction": dir,
		"entry":     s.Entry,
		"exit":      s.Exit,
	}).Debug("Home sweep recorded")
	return s, nil
}

// CalibrateHome measures the home switch region. The dome is homed and
// backed off, then swept across the switch in both directions per pass;
// at least 3 passes are required for a stable average. Afterwards the
// dome parks on the region midpoint and the position is re-referenced
// there, so the home azimuth refers to the center of the region rather
// than whichever edge the last approach happened to hit.
func (e *Engine) CalibrateHome(passes int) (*HomeCalibration, error) {
	if passes < 3 {
		return nil, pkgerrors.Errorf("home calibration needs at least 3 passes, got %d", passes)
	}
	if err := e.Home(); err != nil {
		return nil, err
	}

	backoff, _ := e.geom.TicksForDegrees(calBackoffDeg, state.CCW)
	sweepCW, _ := e.geom.TicksForDegrees(calSweepDeg, state.CW)
	sweepCCW, _ := e.geom.TicksForDegrees(calSweepDeg, state.CCW)

	if err := e.rotateTicks(state.CCW, backoff); err != nil {
		return nil, pkgerrors.Wrap(err, "backing off home")
	}

	cal := &HomeCalibration{}
	for pass := 1; pass <= passes; pass++ {
		logrus.Infof("Home calibration pass %d of %d", pass, passes)
		out, err := e.sweepHome(state.CW, sweepCW)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "pass %d outbound", pass)
		}
		back, err := e.sweepHome(state.CCW, sweepCCW)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "pass %d return", pass)
		}
		cal.Sweeps = append(cal.Sweeps, out, back)
	}

	cal.AvgWidth, cal.Midpoint = summarizeSweeps(cal.Sweeps)

	// Park centered: find the leading edge once more, then crawl half
	// the region width past it.
	if err := e.Home(); err != nil {
		return nil, err
	}
	if center := int64(math.Round(cal.AvgWidth / 2)); center > 0 {
		if err := e.rotateTicks(state.CW, center); err != nil {
			return nil, pkgerrors.Wrap(err, "centering on home region")
		}
		e.setHome()
	}

	logrus.WithFields(logrus.Fields{
		"sweeps":   len(cal.Sweeps),
		"avgWidth": cal.AvgWidth,
		"midpoint": cal.Midpoint,
	}).Info("Home calibration complete")
	return cal, nil
}

// MeasureRevolution turns the dome one full revolution in dir and returns
// the encoder ticks between leaving the home region and re-entering it.
// Run it in both directions to obtain the ticks_per_rev calibration pair.
func (e *Engine) MeasureRevolution(dir state.Direction) (int64, error) {
	if err := e.Home(); err != nil {
		return 0, err
	}
	if err := e.setDirection(dir); err != nil {
		return 0, err
	}
	if err := e.startRotation(); err != nil {
		return 0, err
	}

	deb := e.newHomeDebouncer()
	left := false
	var revTicks int64
	err := e.pollUntil(e.cfg.HomePollFast(), e.cfg.MaxRotationTime(), func() (bool, error) {
		home, err := e.IsHome()
		if err != nil {
			return false, err
		}
		if !left {
			left = !home
			return false, nil
		}
		wasAsserted := deb.asserted
		accepted := deb.observe(home)
		if home && !wasAsserted {
			// Raw leading edge: capture the count here, before the
			// debounce wait adds travel.
			ticks, err := e.board.ReadCounter(counterEncoder)
			if err != nil {
				return false, pkgerrors.Wrap(err, "reading encoder")
			}
			revTicks = ticks
		}
		return accepted, nil
	})
	e.StopRotation()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "measuring %s revolution", dir)
	}

	logrus.WithFields(logrus.Fields{
		"direction": dir,
		"ticks":     revTicks,
	}).Info("Revolution measured")
	return revTicks, nil
}
