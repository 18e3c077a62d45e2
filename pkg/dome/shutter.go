package dome

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oakmount-obs/domectl/pkg/state"
)

// OpenShutter starts driving the shutter open and returns. The dome must
// be parked at home: shutter power comes through docking contacts that
// only mate there. The drive stops itself at the upper limit switch; the
// logical state stays "opening" until a completed wait marks it open.
func (e *Engine) OpenShutter() error {
	return e.startShutter(state.ShutterOpening)
}

// CloseShutter starts driving the shutter closed and returns. Same rules
// as OpenShutter, with the lower limit switch ending the travel.
func (e *Engine) CloseShutter() error {
	return e.startShutter(state.ShutterClosing)
}

func (e *Engine) startShutter(op state.ShutterState) error {
	home, err := e.IsHome()
	if err != nil {
		return err
	}
	if !home {
		logrus.Error("Cannot operate shutter, dome is not at home position")
		return ErrNotAtHome
	}
	if e.dome.Shutter.Moving() {
		logrus.Error("Shutter operation already in progress")
		return ErrShutterBusy
	}

	// Direction relay at rest opens, energized closes.
	var dirErr error
	if op == state.ShutterClosing {
		dirErr = e.board.SetOutput(e.cfg.Pins.ShutterDirection)
	} else {
		dirErr = e.board.ClearOutput(e.cfg.Pins.ShutterDirection)
	}
	if dirErr != nil {
		return pkgerrors.Wrap(dirErr, "setting shutter direction relay")
	}
	if err := e.board.SetOutput(e.cfg.Pins.ShutterMove); err != nil {
		return pkgerrors.Wrap(err, "energizing shutter motor relay")
	}
	e.dome.Shutter = op
	logrus.Infof("Shutter %s", op)
	return nil
}

// WaitForShutter blocks for the full travel time, then releases the
// drive. There is no position feedback; the limit switches cut motor
// power at the ends of travel, the timer just outlasts the slowest run.
func (e *Engine) WaitForShutter() {
	total := e.cfg.MaxShutterTime()
	interval := e.cfg.PollInterval()
	op := e.dome.Shutter
	logrus.Infof("Waiting %s for shutter %s to complete", total, op)

	deadline := e.now().Add(total)
	for e.now().Before(deadline) {
		e.sleep(interval)
		logrus.Debugf("Shutter %s underway", op)
	}
	e.StopShutter()
	logrus.Infof("Shutter %s travel time elapsed", op)
}

// StopShutter releases the shutter drive. Safe to call at any time and
// never fails; a shutter stopped mid-travel is in an unknown position
// until the next completed open or close.
func (e *Engine) StopShutter() {
	logrus.Info("Stopping shutter movement")
	if err := e.board.ClearOutput(e.cfg.Pins.ShutterMove); err != nil {
		logrus.WithError(err).Error("Failed to release shutter motor relay")
	}
	if err := e.board.ClearOutput(e.cfg.Pins.ShutterDirection); err != nil {
		logrus.WithError(err).Error("Failed to release shutter direction relay")
	}
	if e.dome.Shutter.Moving() {
		e.dome.Shutter = state.ShutterUnknown
	}
}

// SetShutterOpen marks the shutter fully open after a completed travel.
func (e *Engine) SetShutterOpen() {
	e.dome.Shutter = state.ShutterOpen
	logrus.Info("Shutter state set to open")
}

// SetShutterClosed marks the shutter fully closed after a completed
// travel.
func (e *Engine) SetShutterClosed() {
	e.dome.Shutter = state.ShutterClosed
	logrus.Info("Shutter state set to closed")
}

// Open runs the full blocking open sequence: start, wait out the travel
// time, release the drive, mark open.
func (e *Engine) Open() error {
	if err := e.OpenShutter(); err != nil {
		return err
	}
	e.WaitForShutter()
	e.SetShutterOpen()
	return nil
}

// Close runs the full blocking close sequence.
func (e *Engine) Close() error {
	if err := e.CloseShutter(); err != nil {
		return err
	}
	e.WaitForShutter()
	e.SetShutterClosed()
	return nil
}
