package hwio

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sim is an in-memory Board for tests and dry runs.
//
// It can emulate dome motion: while digital output DriveOutput is energized,
// every ReadCounter of DriveCounter advances that counter by TicksPerRead.
// Poll loops then observe steady progress without wall-clock time passing.
// A zero DriveOutput disables the drive model.
type Sim struct {
	mu sync.Mutex

	open     bool
	outputs  [NumDigitalOutputs + 1]bool
	inputs   [NumDigitalInputs + 1]bool
	analog   [NumAnalogInputs + 1]uint8
	counters [NumCounters + 1]int64
	debounce [NumCounters + 1]time.Duration

	DriveOutput  int
	DriveCounter int
	TicksPerRead int64
}

// NewSim returns a closed Sim with all channels at rest.
func NewSim() *Sim {
	return &Sim{}
}

func (s *Sim) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	logrus.Trace("sim board opened")
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	logrus.Trace("sim board closed")
	return nil
}

func (s *Sim) SetOutput(ch int) error {
	if err := checkOutput(ch); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.outputs[ch] = true
	logrus.WithFields(logrus.Fields{"ch": ch}).Trace("sim output set")
	return nil
}

func (s *Sim) ClearOutput(ch int) error {
	if err := checkOutput(ch); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.outputs[ch] = false
	logrus.WithFields(logrus.Fields{"ch": ch}).Trace("sim output cleared")
	return nil
}

func (s *Sim) ReadInput(ch int) (bool, error) {
	if err := checkInput(ch); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false, ErrNotOpen
	}
	return s.inputs[ch], nil
}

func (s *Sim) ReadAnalog(ch int) (uint8, error) {
	if err := checkAnalog(ch); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotOpen
	}
	return s.analog[ch], nil
}

func (s *Sim) ReadCounter(id int) (int64, error) {
	if err := checkCounter(id); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotOpen
	}
	if id == s.DriveCounter && s.DriveOutput != 0 && s.outputs[s.DriveOutput] {
		s.counters[id] += s.TicksPerRead
	}
	return s.counters[id], nil
}

func (s *Sim) ResetCounter(id int) error {
	if err := checkCounter(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.counters[id] = 0
	return nil
}

func (s *Sim) SetCounterDebounce(id int, d time.Duration) error {
	if err := checkCounter(id); err != nil {
		return err
	}
	if err := checkDebounce(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.debounce[id] = d
	return nil
}

// Output reports the current state of digital output ch. Test helper.
func (s *Sim) Output(ch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs[ch]
}

// SetInput forces digital input ch to v. Test helper.
func (s *Sim) SetInput(ch int, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[ch] = v
}

// SetAnalog forces analog input ch to v. Test helper.
func (s *Sim) SetAnalog(ch int, v uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analog[ch] = v
}

// AdvanceCounter adds n pulses to counter id. Test helper.
func (s *Sim) AdvanceCounter(id int, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id] += n
}

// Counter peeks at counter id without the drive model advancing it.
// Test helper.
func (s *Sim) Counter(id int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[id]
}

// Debounce reports the configured debounce window of counter id. Test helper.
func (s *Sim) Debounce(id int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce[id]
}
