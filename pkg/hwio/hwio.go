// Package hwio talks to the dome interface board: a K8055-class I/O card
// with 8 digital outputs, 5 digital inputs, 2 analog inputs and 2 debounced
// pulse counters. Board is the capability surface the dome engine programs
// against; Sim, Modbus and RPi are the available backends.
package hwio

import (
	"errors"
	"fmt"
	"time"
)

// Channel counts of the interface board. Channels are 1-based, matching the
// numbering silk-screened on the card.
const (
	NumDigitalOutputs = 8
	NumDigitalInputs  = 5
	NumAnalogInputs   = 2
	NumCounters       = 2
)

// Debounce window limits supported by the counter hardware.
const (
	MinDebounce = 1 * time.Millisecond
	MaxDebounce = 7450 * time.Millisecond
)

var (
	// ErrNotOpen is returned when the board has not been opened yet.
	ErrNotOpen = errors.New("board not open")
	// ErrBadChannel is returned for channel numbers outside the board layout.
	ErrBadChannel = errors.New("channel out of range")
	// ErrUnsupported is returned by backends that lack a channel class.
	ErrUnsupported = errors.New("not supported by this backend")
)

// Board is the capability surface of the dome interface card.
//
// Every method can fail with a hardware error; callers decide whether a
// failure is fatal for the operation in progress. Counter values only grow
// between resets, regardless of rotation direction.
type Board interface {
	Open() error
	Close() error

	// SetOutput energizes digital output ch.
	SetOutput(ch int) error
	// ClearOutput de-energizes digital output ch.
	ClearOutput(ch int) error
	// ReadInput samples digital input ch.
	ReadInput(ch int) (bool, error)
	// ReadAnalog samples analog input ch, 0..255.
	ReadAnalog(ch int) (uint8, error)

	// ReadCounter returns the accumulated pulse count of counter id.
	ReadCounter(id int) (int64, error)
	// ResetCounter zeroes counter id.
	ResetCounter(id int) error
	// SetCounterDebounce sets the hardware debounce window of counter id.
	SetCounterDebounce(id int, d time.Duration) error
}

func checkOutput(ch int) error {
	if ch < 1 || ch > NumDigitalOutputs {
		return fmt.Errorf("digital output %d: %w", ch, ErrBadChannel)
	}
	return nil
}

func checkInput(ch int) error {
	if ch < 1 || ch > NumDigitalInputs {
		return fmt.Errorf("digital input %d: %w", ch, ErrBadChannel)
	}
	return nil
}

func checkAnalog(ch int) error {
	if ch < 1 || ch > NumAnalogInputs {
		return fmt.Errorf("analog input %d: %w", ch, ErrBadChannel)
	}
	return nil
}

func checkCounter(id int) error {
	if id < 1 || id > NumCounters {
		return fmt.Errorf("counter %d: %w", id, ErrBadChannel)
	}
	return nil
}

func checkDebounce(d time.Duration) error {
	if d < MinDebounce || d > MaxDebounce {
		return fmt.Errorf("debounce %s outside %s..%s", d, MinDebounce, MaxDebounce)
	}
	return nil
}
