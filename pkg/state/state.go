// Package state persists the dome between command invocations. Every
// domectl command is a fresh process; the position, motion flags and shutter
// state live in a JSON file that each command restores on start and writes
// back before exiting.
//
// Concurrent commands are not arbitrated here. The INDI dispatcher runs
// commands one at a time; two racing processes will last-write-win.
package state

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultPath is where the state file lives when no --state flag is given.
const DefaultPath = "/var/lib/domectl/state.json"

// Direction of dome rotation as seen from above.
type Direction string

const (
	CW  Direction = "CW"
	CCW Direction = "CCW"
)

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == CW {
		return CCW
	}
	return CW
}

// ShutterState is the logical state of the shutter. There is no position
// sensor on the shutter drive, so the state is inferred from completed
// operations; ShutterUnknown marks a drive stopped mid-travel.
type ShutterState string

const (
	ShutterClosed  ShutterState = "closed"
	ShutterOpen    ShutterState = "open"
	ShutterOpening ShutterState = "opening"
	ShutterClosing ShutterState = "closing"
	ShutterUnknown ShutterState = "unknown"
)

// Moving reports whether the shutter drive is underway.
func (s ShutterState) Moving() bool {
	return s == ShutterOpening || s == ShutterClosing
}

// Dome is the persisted record.
type Dome struct {
	Azimuth   float64   `json:"azimuth"`
	Direction Direction `json:"direction"`
	IsHome    bool      `json:"isHome"`
	IsTurning bool      `json:"isTurning"`

	Shutter ShutterState `json:"shutter"`

	// EncoderTicks is the position counter value at the last stop,
	// HomeCount the home switch activation counter. Both only grow
	// between explicit resets.
	EncoderTicks  int64 `json:"encoderTicks"`
	HomeCount     int64 `json:"homeCount"`
	EncoderErrors int   `json:"encoderErrors"`

	Connected bool `json:"connected"`

	SavedAt time.Time `json:"savedAt"`
	SavedBy string    `json:"savedBy"`
}

// Fresh returns the state of a dome that has never moved: azimuth 0,
// shutter closed, at rest.
func Fresh() *Dome {
	return &Dome{
		Direction: CW,
		Shutter:   ShutterClosed,
	}
}

// Summary renders the record for the operator.
func (d *Dome) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "azimuth:        %.1f\n", d.Azimuth)
	fmt.Fprintf(&b, "direction:      %s\n", d.Direction)
	fmt.Fprintf(&b, "at home:        %t\n", d.IsHome)
	fmt.Fprintf(&b, "turning:        %t\n", d.IsTurning)
	fmt.Fprintf(&b, "shutter:        %s\n", d.Shutter)
	fmt.Fprintf(&b, "encoder ticks:  %d\n", d.EncoderTicks)
	fmt.Fprintf(&b, "home count:     %d\n", d.HomeCount)
	fmt.Fprintf(&b, "encoder errors: %d\n", d.EncoderErrors)
	fmt.Fprintf(&b, "connected:      %t\n", d.Connected)
	if !d.SavedAt.IsZero() {
		fmt.Fprintf(&b, "saved:          %s by %q\n", d.SavedAt.Format(time.RFC3339), d.SavedBy)
	}
	return b.String()
}

// LogrusFields renders the record for structured logging.
func (d *Dome) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"azimuth":   d.Azimuth,
		"direction": d.Direction,
		"isHome":    d.IsHome,
		"isTurning": d.IsTurning,
		"shutter":   d.Shutter,
		"connected": d.Connected,
	}
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore returns a Store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load restores the persisted record. A missing or empty file yields a
// fresh dome, not an error, so the very first command works on a new
// install.
func (s *Store) Load() (*Dome, error) {
	fp, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fresh(), nil
		}
		return nil, pkgerrors.Wrapf(err, "failed to open state file %s", s.path)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close state file %s", s.path)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read state file %s", s.path)
	}
	if strings.TrimSpace(string(b)) == "" {
		return Fresh(), nil
	}

	d := Fresh()
	if err := json.Unmarshal(b, d); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal state from %s", s.path)
	}
	d.normalize()
	return d, nil
}

// Save stamps the record and writes it out. The parent directory is
// created if needed.
func (s *Store) Save(d *Dome, by string) error {
	d.SavedAt = time.Now()
	d.SavedBy = by

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkgerrors.Wrapf(err, "failed to create state directory %s", dir)
		}
	}

	fp, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open state file %s", s.path)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close state file %s", s.path)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode state to %s", s.path)
	}

	logrus.WithFields(d.LogrusFields()).Debug("Dome state saved")
	return nil
}

// Clear removes the state file. A missing file is fine.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove state file %s", s.path)
	}
	return nil
}

// normalize repairs enum fields that an older or hand-edited file may
// carry, rather than failing the whole load.
func (d *Dome) normalize() {
	switch d.Direction {
	case CW, CCW:
	default:
		d.Direction = CW
	}
	switch d.Shutter {
	case ShutterClosed, ShutterOpen, ShutterOpening, ShutterClosing, ShutterUnknown:
	default:
		d.Shutter = ShutterUnknown
	}
}
