package dome

import (
	"errors"
	"testing"
	"time"

	"github.com/oakmount-obs/domectl/pkg/state"
)

func TestAbortStopsEverything(t *testing.T) {
	e, sim, _ := newTestEngine(t, nil)
	sim.SetInput(e.cfg.Pins.HomeSwitch, true)
	if err := e.MoveCW(); err != nil {
		t.Fatal(err)
	}
	if err := e.OpenShutter(); err != nil {
		t.Fatal(err)
	}

	e.Abort()

	for _, ch := range []int{
		e.cfg.Pins.DomeRotate,
		e.cfg.Pins.DomeDirection,
		e.cfg.Pins.ShutterMove,
		e.cfg.Pins.ShutterDirection,
	} {
		if sim.Output(ch) {
			t.Errorf("output %d still energized after abort", ch)
		}
	}
	if e.Dome().IsTurning {
		t.Error("turning flag should be cleared")
	}
	if e.Dome().Shutter.Moving() {
		t.Errorf("shutter = %s, should not be moving", e.Dome().Shutter)
	}
}

// Abort is the last line of defense: a board that fails every call must
// not make it panic or leave motion flags set.
func TestAbortOnDeadBoard(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	e.board = deadBoard{}
	e.Dome().IsTurning = true
	e.Dome().Shutter = state.ShutterOpening

	e.Abort()

	if e.Dome().IsTurning {
		t.Error("turning flag should be cleared even when the board is dead")
	}
	if e.Dome().Shutter.Moving() {
		t.Errorf("shutter = %s, should not be moving", e.Dome().Shutter)
	}
}

// deadBoard fails every call, like a card whose USB cable was pulled.
type deadBoard struct{}

var errDead = errors.New("device not responding")

func (deadBoard) Open() error                                 { return errDead }
func (deadBoard) Close() error                                { return errDead }
func (deadBoard) SetOutput(int) error                         { return errDead }
func (deadBoard) ClearOutput(int) error                       { return errDead }
func (deadBoard) ReadInput(int) (bool, error)                 { return false, errDead }
func (deadBoard) ReadAnalog(int) (uint8, error)               { return 0, errDead }
func (deadBoard) ReadCounter(int) (int64, error)              { return 0, errDead }
func (deadBoard) ResetCounter(int) error                      { return errDead }
func (deadBoard) SetCounterDebounce(int, time.Duration) error { return errDead }
