package dome

import "github.com/sirupsen/logrus"

// Abort halts all dome motion. Both stop sequences attempt every relay
// release regardless of earlier failures; an abort must leave as much of
// the dome stopped as the hardware allows, and it always succeeds from
// the caller's point of view.
func (e *Engine) Abort() {
	logrus.Warn("Aborting all dome motion")
	e.StopRotation()
	e.StopShutter()
}
