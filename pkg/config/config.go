// Package config loads the dome description: which board channels the
// motors, encoder and switches are wired to, the measured calibration values
// of the dome, and safety limits. Everything not given in the YAML file
// falls back to a default, but a real dome needs at least the calibration
// section measured and set.
package config

import (
	"fmt"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/oakmount-obs/domectl/pkg/hwio"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "/etc/domectl/dome.yaml"

// PinsConfig assigns board channels. Digital inputs and outputs are
// numbered independently, each starting at 1. The board counters shadow
// digital inputs 1 and 2, so the encoder must sit on input 1 and the home
// switch on input 2 for the counters to count the right pulses.
type PinsConfig struct {
	EncoderA   int `yaml:"encoder_a"`   // encoder pulse train (digital input)
	EncoderB   int `yaml:"encoder_b"`   // second encoder phase, reserved (digital input)
	HomeSwitch int `yaml:"home_switch"` // home position switch (digital input)

	DomeRotate       int `yaml:"dome_rotate"`       // rotation motor relay (digital output)
	DomeDirection    int `yaml:"dome_direction"`    // rotation direction relay (digital output)
	ShutterMove      int `yaml:"shutter_move"`      // shutter motor relay (digital output)
	ShutterDirection int `yaml:"shutter_direction"` // shutter direction relay (digital output)
}

// CalibrationConfig holds the measured properties of the dome. The two
// ticks-per-revolution values differ on most domes because the friction
// drive slips differently per direction.
type CalibrationConfig struct {
	HomePositionDeg float64 `yaml:"home_position_deg"` // azimuth of the home switch
	TicksPerRevCW   int     `yaml:"ticks_per_rev_cw"`
	TicksPerRevCCW  int     `yaml:"ticks_per_rev_ccw"`

	PollIntervalMs        int `yaml:"poll_interval_ms"`   // rotation/shutter progress polling
	HomePollFastMs        int `yaml:"home_poll_fast_ms"`  // faster polling while homing
	HomeDebounceMs        int `yaml:"home_debounce_ms"`   // switch must stay asserted this long
	CounterDebounceMs     int `yaml:"counter_debounce_ms"`
	EncoderErrorThreshold int `yaml:"encoder_error_threshold"` // stalled polls before flagging
}

// SafetyConfig bounds every motorized operation.
type SafetyConfig struct {
	MaxRotationTimeMs int `yaml:"max_rotation_time_ms"` // 0 disables the rotation watchdog
	MaxShutterTimeMs  int `yaml:"max_shutter_time_ms"`  // full travel time of the shutter
}

// ModbusConfig describes the serial line of the modbus backend.
type ModbusConfig struct {
	Device    string `yaml:"device"`
	BaudRate  int    `yaml:"baud_rate"`
	SlaveID   int    `yaml:"slave_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// RPiConfig maps logical board channels to BCM pin numbers, index 0 being
// channel 1.
type RPiConfig struct {
	OutputPins  []int `yaml:"output_pins"`
	InputPins   []int `yaml:"input_pins"`
	CounterPins []int `yaml:"counter_pins"`
}

// HardwareConfig selects and configures the board backend.
type HardwareConfig struct {
	Backend string       `yaml:"backend"` // sim, modbus or rpio
	Modbus  ModbusConfig `yaml:"modbus"`
	RPi     RPiConfig    `yaml:"rpio"`
}

// Config aggregates the dome description.
type Config struct {
	Pins        PinsConfig        `yaml:"pins"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Safety      SafetyConfig      `yaml:"safety"`
	Hardware    HardwareConfig    `yaml:"hardware"`
}

// Default returns the built-in configuration: sim backend, 1 degree per
// tick, conservative timings. Real domes override at least the calibration
// section.
func Default() *Config {
	return &Config{
		Pins: PinsConfig{
			EncoderA:         1,
			EncoderB:         5,
			HomeSwitch:       2,
			DomeRotate:       1,
			DomeDirection:    2,
			ShutterMove:      3,
			ShutterDirection: 4,
		},
		Calibration: CalibrationConfig{
			HomePositionDeg:       0,
			TicksPerRevCW:         360,
			TicksPerRevCCW:        360,
			PollIntervalMs:        500,
			HomePollFastMs:        50,
			HomeDebounceMs:        100,
			CounterDebounceMs:     2,
			EncoderErrorThreshold: 50,
		},
		Safety: SafetyConfig{
			MaxRotationTimeMs: 120000,
			MaxShutterTimeMs:  30000,
		},
		Hardware: HardwareConfig{
			Backend: "sim",
			Modbus: ModbusConfig{
				Device:    "/dev/ttyUSB0",
				BaudRate:  9600,
				SlaveID:   1,
				TimeoutMs: 1000,
			},
		},
	}
}

// Load reads the YAML file at path. A missing file is not an error: the
// defaults are returned so a fresh install can run against the sim backend.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logrus.WithField("path", path).Warn("Config file not found, using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "reading config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, pkgerrors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks channel assignments and value ranges.
func (c *Config) Validate() error {
	outputs := map[string]int{
		"dome_rotate":       c.Pins.DomeRotate,
		"dome_direction":    c.Pins.DomeDirection,
		"shutter_move":      c.Pins.ShutterMove,
		"shutter_direction": c.Pins.ShutterDirection,
	}
	if err := uniqueChannels(outputs, hwio.NumDigitalOutputs); err != nil {
		return err
	}
	inputs := map[string]int{
		"encoder_a":   c.Pins.EncoderA,
		"encoder_b":   c.Pins.EncoderB,
		"home_switch": c.Pins.HomeSwitch,
	}
	if err := uniqueChannels(inputs, hwio.NumDigitalInputs); err != nil {
		return err
	}

	cal := c.Calibration
	if cal.TicksPerRevCW <= 0 || cal.TicksPerRevCCW <= 0 {
		return fmt.Errorf("ticks_per_rev must be positive, got cw=%d ccw=%d",
			cal.TicksPerRevCW, cal.TicksPerRevCCW)
	}
	if cal.HomePositionDeg < 0 || cal.HomePositionDeg >= 360 {
		return fmt.Errorf("home_position_deg must be in [0, 360), got %g", cal.HomePositionDeg)
	}
	if cal.PollIntervalMs <= 0 || cal.HomePollFastMs <= 0 || cal.HomeDebounceMs <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if cal.EncoderErrorThreshold <= 0 {
		return fmt.Errorf("encoder_error_threshold must be positive, got %d", cal.EncoderErrorThreshold)
	}
	if d := c.CounterDebounce(); d < hwio.MinDebounce || d > hwio.MaxDebounce {
		return fmt.Errorf("counter_debounce_ms must be in %v..%v, got %v",
			hwio.MinDebounce, hwio.MaxDebounce, d)
	}

	if c.Safety.MaxRotationTimeMs < 0 {
		return fmt.Errorf("max_rotation_time_ms must not be negative, got %d", c.Safety.MaxRotationTimeMs)
	}
	if c.Safety.MaxShutterTimeMs <= 0 {
		return fmt.Errorf("max_shutter_time_ms must be positive, got %d", c.Safety.MaxShutterTimeMs)
	}

	switch c.Hardware.Backend {
	case "sim":
	case "modbus":
		if c.Hardware.Modbus.Device == "" {
			return fmt.Errorf("modbus.device is required")
		}
		if c.Hardware.Modbus.BaudRate <= 0 {
			return fmt.Errorf("modbus.baud_rate must be positive, got %d", c.Hardware.Modbus.BaudRate)
		}
		if c.Hardware.Modbus.SlaveID < 1 || c.Hardware.Modbus.SlaveID > 247 {
			return fmt.Errorf("modbus.slave_id must be in 1..247, got %d", c.Hardware.Modbus.SlaveID)
		}
	case "rpio":
		rp := c.Hardware.RPi
		if len(rp.OutputPins) > hwio.NumDigitalOutputs ||
			len(rp.InputPins) > hwio.NumDigitalInputs ||
			len(rp.CounterPins) > hwio.NumCounters {
			return fmt.Errorf("rpio pin lists exceed the board layout")
		}
		if err := uniqueBCM(rp.OutputPins, rp.InputPins, rp.CounterPins); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
	return nil
}

func uniqueChannels(chans map[string]int, max int) error {
	used := make(map[int]string)
	for name, ch := range chans {
		if ch < 1 || ch > max {
			return fmt.Errorf("pins.%s: channel %d out of range 1..%d", name, ch, max)
		}
		if other, ok := used[ch]; ok {
			return fmt.Errorf("pins.%s and pins.%s share channel %d", other, name, ch)
		}
		used[ch] = name
	}
	return nil
}

func uniqueBCM(lists ...[]int) error {
	used := make(map[int]bool)
	for _, pins := range lists {
		for _, pin := range pins {
			if pin <= 0 {
				return fmt.Errorf("rpio: BCM pin numbers must be positive, got %d", pin)
			}
			if used[pin] {
				return fmt.Errorf("rpio: BCM pin %d assigned twice", pin)
			}
			used[pin] = true
		}
	}
	return nil
}

// PollInterval is the progress polling period of blocking operations.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Calibration.PollIntervalMs) * time.Millisecond
}

// HomePollFast is the faster polling period used while homing.
func (c *Config) HomePollFast() time.Duration {
	return time.Duration(c.Calibration.HomePollFastMs) * time.Millisecond
}

// HomeDebounce is how long the home switch must stay asserted to count.
func (c *Config) HomeDebounce() time.Duration {
	return time.Duration(c.Calibration.HomeDebounceMs) * time.Millisecond
}

// CounterDebounce is the hardware debounce window applied to both counters.
func (c *Config) CounterDebounce() time.Duration {
	return time.Duration(c.Calibration.CounterDebounceMs) * time.Millisecond
}

// MaxRotationTime bounds a single rotation. Zero means unbounded.
func (c *Config) MaxRotationTime() time.Duration {
	return time.Duration(c.Safety.MaxRotationTimeMs) * time.Millisecond
}

// MaxShutterTime is the full travel time of the shutter drive.
func (c *Config) MaxShutterTime() time.Duration {
	return time.Duration(c.Safety.MaxShutterTimeMs) * time.Millisecond
}

// ModbusTimeout is the per-request timeout of the modbus backend.
func (c *Config) ModbusTimeout() time.Duration {
	return time.Duration(c.Hardware.Modbus.TimeoutMs) * time.Millisecond
}

// NewBoard builds the configured hardware backend.
func (c *Config) NewBoard() (hwio.Board, error) {
	switch c.Hardware.Backend {
	case "sim":
		return hwio.NewSim(), nil
	case "modbus":
		m := c.Hardware.Modbus
		return hwio.NewModbus(m.Device, m.BaudRate, byte(m.SlaveID), c.ModbusTimeout()), nil
	case "rpio":
		rp := c.Hardware.RPi
		return hwio.NewRPi(rp.OutputPins, rp.InputPins, rp.CounterPins), nil
	default:
		return nil, fmt.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
}
