package dome

import "time"

// pollUntil evaluates done every interval until it reports true or fails.
// A positive timeout bounds the wait with ErrTimeout; zero waits forever.
// The first evaluation happens immediately, before any sleep.
func (e *Engine) pollUntil(interval, timeout time.Duration, done func() (bool, error)) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = e.now().Add(timeout)
	}
	for {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !deadline.IsZero() && !e.now().Before(deadline) {
			return ErrTimeout
		}
		e.sleep(interval)
	}
}
