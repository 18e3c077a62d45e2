package dome

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oakmount-obs/domectl/pkg/config"
	"github.com/oakmount-obs/domectl/pkg/hwio"
	"github.com/oakmount-obs/domectl/pkg/state"
)

// Counters wired on the interface card: the encoder pulse train feeds
// counter 1, the home switch feeds counter 2.
const (
	counterEncoder = 1
	counterHome    = 2
)

// Engine drives one dome: relays and sensors through the interface board,
// logical state through the persisted record.
type Engine struct {
	cfg   *config.Config
	board hwio.Board
	dome  *state.Dome
	geom  Geometry

	// Injectable clock for the blocking poll loops.
	sleep func(time.Duration)
	now   func() time.Time

	// tickMark is the encoder counter value when the current motion
	// started. Azimuth updates use the delta since the mark, so stale
	// counter contents from earlier motions never count twice.
	tickMark int64

	lastTicks  int64
	stallPolls int
}

// New returns an Engine over the given board and restored state.
func New(cfg *config.Config, board hwio.Board, dome *state.Dome) *Engine {
	return &Engine{
		cfg:   cfg,
		board: board,
		dome:  dome,
		geom: Geometry{
			TicksPerRevCW:  cfg.Calibration.TicksPerRevCW,
			TicksPerRevCCW: cfg.Calibration.TicksPerRevCCW,
			HomeAzimuth:    cfg.Calibration.HomePositionDeg,
		},
		sleep:    time.Sleep,
		now:      time.Now,
		tickMark: dome.EncoderTicks,
	}
}

// Dome exposes the underlying record for persisting and rendering.
func (e *Engine) Dome() *state.Dome {
	return e.dome
}

// Geometry exposes the tick conversion in use.
func (e *Engine) Geometry() Geometry {
	return e.geom
}

// Connect opens the board and prepares the counters: hardware debounce
// from the config, both counters cleared, home switch probed once so the
// record starts out truthful.
func (e *Engine) Connect() error {
	if err := e.board.Open(); err != nil {
		return pkgerrors.Wrap(err, "opening board")
	}
	for id := 1; id <= hwio.NumCounters; id++ {
		if err := e.board.SetCounterDebounce(id, e.cfg.CounterDebounce()); err != nil {
			return pkgerrors.Wrapf(err, "setting counter %d debounce", id)
		}
		if err := e.board.ResetCounter(id); err != nil {
			return pkgerrors.Wrapf(err, "clearing counter %d", id)
		}
	}
	e.dome.EncoderTicks = 0
	e.dome.HomeCount = 0
	e.tickMark = 0

	if _, err := e.IsHome(); err != nil {
		return err
	}
	e.dome.Connected = true
	logrus.WithFields(e.dome.LogrusFields()).Info("Dome connected")
	return nil
}

// Disconnect stops all motion and closes the board. Best effort: every
// step runs regardless of earlier failures, and none of them is fatal.
func (e *Engine) Disconnect() {
	e.Abort()
	if err := e.board.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close board")
	}
	e.dome.Connected = false
	logrus.Info("Dome disconnected")
}

// Azimuth returns the last fixed position without touching the hardware.
func (e *Engine) Azimuth() float64 {
	return e.dome.Azimuth
}

// CurrentAzimuth computes the live position: the fixed azimuth plus the
// encoder travel since the last stop, with the home switch overriding
// dead reckoning when asserted.
func (e *Engine) CurrentAzimuth() (float64, error) {
	ticks, err := e.board.ReadCounter(counterEncoder)
	if err != nil {
		return e.dome.Azimuth, pkgerrors.Wrap(err, "reading encoder")
	}
	home, err := e.IsHome()
	if err != nil {
		return e.dome.Azimuth, err
	}
	return e.geom.Position(e.dome.Azimuth, ticks-e.tickMark, e.dome.Direction, home), nil
}

// Diagnostics is a live snapshot of the encoder bookkeeping.
type Diagnostics struct {
	EncoderTicks  int64 `json:"encoderTicks"`
	HomeCount     int64 `json:"homeCount"`
	EncoderErrors int   `json:"encoderErrors"`
	StallPolls    int   `json:"stallPolls"`
}

// ReadDiagnostics reads both counters and reports them together with the
// accumulated encoder error count.
func (e *Engine) ReadDiagnostics() (Diagnostics, error) {
	ticks, err := e.board.ReadCounter(counterEncoder)
	if err != nil {
		return Diagnostics{}, pkgerrors.Wrap(err, "reading encoder")
	}
	homes, err := e.board.ReadCounter(counterHome)
	if err != nil {
		return Diagnostics{}, pkgerrors.Wrap(err, "reading home counter")
	}
	e.dome.HomeCount = homes
	return Diagnostics{
		EncoderTicks:  ticks,
		HomeCount:     homes,
		EncoderErrors: e.dome.EncoderErrors,
		StallPolls:    e.stallPolls,
	}, nil
}
