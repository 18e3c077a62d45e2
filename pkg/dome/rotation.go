package dome

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oakmount-obs/domectl/pkg/state"
)

// Relay sequencing delays of the drive electronics. The direction relay
// must never switch under load.
const (
	motorStopSettle = 100 * time.Millisecond // motor spin-down before flipping direction
	relaySettle     = 20 * time.Millisecond  // direction relay switching time
	rotateOffSettle = 10 * time.Millisecond  // after dropping the motor relay
)

// setDirection prepares the direction relay, stopping the motor first if
// it is running. CW is the relay at rest, CCW energized.
func (e *Engine) setDirection(dir state.Direction) error {
	if e.dome.IsTurning {
		logrus.Warn("Setting direction while motor running, stopping first")
		e.StopRotation()
		e.sleep(motorStopSettle)
	}
	e.dome.Direction = dir

	var err error
	if dir == state.CCW {
		err = e.board.SetOutput(e.cfg.Pins.DomeDirection)
	} else {
		err = e.board.ClearOutput(e.cfg.Pins.DomeDirection)
	}
	if err != nil {
		return pkgerrors.Wrap(err, "setting direction relay")
	}
	e.sleep(relaySettle)
	return nil
}

// startRotation energizes the motor relay in the previously set direction
// and marks the encoder counter so later position updates measure only
// this motion. Non-blocking.
func (e *Engine) startRotation() error {
	if e.dome.IsTurning {
		logrus.Warn("Rotation already in progress")
		return ErrAlreadyTurning
	}

	mark, err := e.board.ReadCounter(counterEncoder)
	if err != nil {
		return pkgerrors.Wrap(err, "reading encoder")
	}
	e.tickMark = mark
	e.dome.EncoderTicks = mark
	e.lastTicks = mark
	e.stallPolls = 0

	if err := e.board.SetOutput(e.cfg.Pins.DomeRotate); err != nil {
		return pkgerrors.Wrap(err, "energizing motor relay")
	}
	e.dome.IsTurning = true
	logrus.Infof("Rotation started, direction %s", e.dome.Direction)
	return nil
}

// StopRotation drops the motor and direction relays and fixes the azimuth
// from the encoder travel since the motion started. It never reports an
// error: the caller is making the dome safe, so every failure is logged
// and the remaining steps still run.
func (e *Engine) StopRotation() {
	logrus.Info("Stopping dome rotation")
	if err := e.board.ClearOutput(e.cfg.Pins.DomeRotate); err != nil {
		logrus.WithError(err).Error("Failed to release motor relay")
	}
	e.sleep(rotateOffSettle)
	if err := e.board.ClearOutput(e.cfg.Pins.DomeDirection); err != nil {
		logrus.WithError(err).Error("Failed to release direction relay")
	}
	e.updatePosition()
	e.dome.IsTurning = false
}

// updatePosition folds the encoder travel since the last mark into the
// persisted azimuth and advances the mark. On a failed read the previous
// azimuth stands and the mark stays put, so the next successful update
// still accounts for the full travel.
func (e *Engine) updatePosition() {
	ticks, err := e.board.ReadCounter(counterEncoder)
	if err != nil {
		logrus.WithError(err).Error("Failed to read encoder, keeping last azimuth")
		return
	}
	atHome := false
	if home, herr := e.board.ReadInput(e.cfg.Pins.HomeSwitch); herr == nil {
		atHome = home
		e.dome.IsHome = home
	}
	e.dome.Azimuth = e.geom.Position(e.dome.Azimuth, ticks-e.tickMark, e.dome.Direction, atHome)
	e.dome.EncoderTicks = ticks
	e.tickMark = ticks
}

// MoveCW starts clockwise rotation and returns; the dome turns until
// stopped or aborted.
func (e *Engine) MoveCW() error {
	return e.move(state.CW)
}

// MoveCCW starts counter-clockwise rotation and returns.
func (e *Engine) MoveCCW() error {
	return e.move(state.CCW)
}

func (e *Engine) move(dir state.Direction) error {
	if err := e.setDirection(dir); err != nil {
		return err
	}
	logrus.Infof("Rotate %s until stopped", dir)
	return e.startRotation()
}

// RotateTo drives the dome to the target azimuth over the shorter arc and
// blocks until the encoder reports enough travel. The motion is bounded
// by the configured max rotation time; on timeout or a failed encoder
// read the dome is stopped before the error is returned.
func (e *Engine) RotateTo(target float64) error {
	target = normalizeDegrees(target)
	start := e.dome.Azimuth
	if target == start {
		logrus.Infof("Dome already at azimuth %.1f", target)
		return nil
	}

	dir, distance := e.geom.ShortestPath(start, target)
	targetTicks, subtick := e.geom.TicksForDegrees(distance, dir)
	logrus.WithFields(logrus.Fields{
		"from":      start,
		"to":        target,
		"direction": dir,
		"distance":  distance,
		"ticks":     targetTicks,
		"subtick":   subtick,
	}).Info("Rotating dome")

	if err := e.setDirection(dir); err != nil {
		return err
	}
	if err := e.startRotation(); err != nil {
		return err
	}
	mark := e.tickMark
	err := e.pollUntil(e.cfg.PollInterval(), e.cfg.MaxRotationTime(), func() (bool, error) {
		ticks, err := e.board.ReadCounter(counterEncoder)
		if err != nil {
			return false, pkgerrors.Wrap(err, "reading encoder")
		}
		e.noteEncoderProgress(ticks)
		return ticks-mark >= targetTicks, nil
	})
	e.StopRotation()
	if err != nil {
		return pkgerrors.Wrapf(err, "rotating to %.1f", target)
	}

	logrus.Infof("Rotation completed, azimuth %.1f", e.dome.Azimuth)
	return nil
}

// rotateTicks drives the dome a fixed number of encoder ticks in dir.
// Open loop, used by the calibration sequences.
func (e *Engine) rotateTicks(dir state.Direction, ticks int64) error {
	if ticks <= 0 {
		return nil
	}
	if err := e.setDirection(dir); err != nil {
		return err
	}
	if err := e.startRotation(); err != nil {
		return err
	}
	mark := e.tickMark
	err := e.pollUntil(e.cfg.HomePollFast(), e.cfg.MaxRotationTime(), func() (bool, error) {
		cur, err := e.board.ReadCounter(counterEncoder)
		if err != nil {
			return false, pkgerrors.Wrap(err, "reading encoder")
		}
		return cur-mark >= ticks, nil
	})
	e.StopRotation()
	return err
}

// Home rotates the dome to the home switch and re-references the
// position there. The home activation counter restarts at the beginning
// so HomeCount afterwards reflects this run only.
func (e *Engine) Home() error {
	if err := e.board.ResetCounter(counterHome); err != nil {
		return pkgerrors.Wrap(err, "resetting home counter")
	}

	dir, distance := e.geom.ShortestPath(e.dome.Azimuth, e.geom.HomeAzimuth)
	logrus.WithFields(logrus.Fields{
		"from":      e.dome.Azimuth,
		"home":      e.geom.HomeAzimuth,
		"direction": dir,
		"distance":  distance,
	}).Info("Homing dome")

	if err := e.setDirection(dir); err != nil {
		return err
	}
	if err := e.startRotation(); err != nil {
		return err
	}
	err := e.waitForHome(e.cfg.MaxRotationTime())
	e.StopRotation()
	if err != nil {
		return pkgerrors.Wrap(err, "homing")
	}

	e.setHome()
	logrus.Infof("Dome homed at azimuth %.1f", e.dome.Azimuth)
	return nil
}

// setHome re-references the position at the switch: azimuth becomes the
// home azimuth and the encoder restarts from zero. The position is forced
// even if the counter reset fails; the switch is ground truth.
func (e *Engine) setHome() {
	if err := e.board.ResetCounter(counterEncoder); err != nil {
		logrus.WithError(err).Error("Failed to reset encoder at home")
	} else {
		e.dome.EncoderTicks = 0
		e.tickMark = 0
		e.lastTicks = 0
	}
	e.dome.Azimuth = normalizeDegrees(e.geom.HomeAzimuth)
	e.dome.IsHome = true
	if n, err := e.board.ReadCounter(counterHome); err == nil {
		e.dome.HomeCount = n
	}
}
