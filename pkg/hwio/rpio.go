package hwio

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// counterSampleInterval is how often the software counters sample their pins.
// 1 kHz is comfortably above the encoder pulse rate of a dome drive.
const counterSampleInterval = time.Millisecond

// RPi drives the dome directly from the Raspberry Pi GPIO header. The board
// counters are emulated in software by a sampling loop that counts rising
// edges, ignoring edges closer together than the configured debounce window.
// Analog inputs are not available on the header.
type RPi struct {
	outputs  []int
	inputs   []int
	counters []*softCounter

	quit chan struct{}
	done chan struct{}
}

type softCounter struct {
	pin rpio.Pin

	mu       sync.Mutex
	count    int64
	debounce time.Duration
	last     rpio.State
	lastEdge time.Time
}

// NewRPi returns a GPIO-backed board. Each slice maps logical channels to
// BCM pin numbers, index 0 being channel 1; channels beyond the slice are
// unwired and rejected. Requires /dev/gpiomem access.
func NewRPi(outputs, inputs, counters []int) *RPi {
	r := &RPi{
		outputs: outputs,
		inputs:  inputs,
	}
	for _, pin := range counters {
		r.counters = append(r.counters, &softCounter{
			pin:      rpio.Pin(pin),
			debounce: MinDebounce,
		})
	}
	return r
}

func (r *RPi) Open() error {
	if err := rpio.Open(); err != nil {
		return pkgerrors.Wrap(err, "mapping GPIO memory")
	}
	for _, pin := range r.outputs {
		rpio.Pin(pin).Output()
	}
	for _, pin := range r.inputs {
		p := rpio.Pin(pin)
		p.Input()
		p.PullUp()
	}
	for _, c := range r.counters {
		c.pin.Input()
		c.pin.PullUp()
		c.last = c.pin.Read()
	}
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	go r.sampleLoop()
	logrus.WithFields(logrus.Fields{
		"outputs":  r.outputs,
		"inputs":   r.inputs,
		"counters": len(r.counters),
	}).Debug("GPIO board opened")
	return nil
}

func (r *RPi) Close() error {
	if r.quit != nil {
		close(r.quit)
		<-r.done
		r.quit = nil
	}
	return rpio.Close()
}

// sampleLoop feeds the software counters until Close.
func (r *RPi) sampleLoop() {
	defer close(r.done)
	ticker := time.NewTicker(counterSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			for _, c := range r.counters {
				c.sample(time.Now())
			}
		}
	}
}

func (c *softCounter) sample(now time.Time) {
	v := c.pin.Read()
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == c.last {
		return
	}
	if v == rpio.High && now.Sub(c.lastEdge) >= c.debounce {
		c.count++
	}
	c.last = v
	c.lastEdge = now
}

func (r *RPi) SetOutput(ch int) error {
	pin, err := r.outputPin(ch)
	if err != nil {
		return err
	}
	pin.High()
	return nil
}

func (r *RPi) ClearOutput(ch int) error {
	pin, err := r.outputPin(ch)
	if err != nil {
		return err
	}
	pin.Low()
	return nil
}

func (r *RPi) ReadInput(ch int) (bool, error) {
	if err := checkInput(ch); err != nil {
		return false, err
	}
	if ch > len(r.inputs) {
		return false, pkgerrors.Wrapf(ErrBadChannel, "input %d not wired", ch)
	}
	return rpio.Pin(r.inputs[ch-1]).Read() == rpio.High, nil
}

func (r *RPi) ReadAnalog(ch int) (uint8, error) {
	if err := checkAnalog(ch); err != nil {
		return 0, err
	}
	return 0, pkgerrors.Wrap(ErrUnsupported, "analog input")
}

func (r *RPi) ReadCounter(id int) (int64, error) {
	c, err := r.counter(id)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, nil
}

func (r *RPi) ResetCounter(id int) error {
	c, err := r.counter(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	return nil
}

func (r *RPi) SetCounterDebounce(id int, d time.Duration) error {
	c, err := r.counter(id)
	if err != nil {
		return err
	}
	if err := checkDebounce(d); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounce = d
	return nil
}

func (r *RPi) outputPin(ch int) (rpio.Pin, error) {
	if err := checkOutput(ch); err != nil {
		return 0, err
	}
	if ch > len(r.outputs) {
		return 0, pkgerrors.Wrapf(ErrBadChannel, "output %d not wired", ch)
	}
	return rpio.Pin(r.outputs[ch-1]), nil
}

func (r *RPi) counter(id int) (*softCounter, error) {
	if err := checkCounter(id); err != nil {
		return nil, err
	}
	if id > len(r.counters) {
		return nil, pkgerrors.Wrapf(ErrBadChannel, "counter %d not wired", id)
	}
	return r.counters[id-1], nil
}
