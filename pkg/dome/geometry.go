package dome

import (
	"math"

	"github.com/oakmount-obs/domectl/pkg/state"
)

// Geometry converts between encoder ticks and dome azimuth. The two
// ticks-per-revolution values are calibrated separately because friction
// drives slip by different amounts per direction.
type Geometry struct {
	TicksPerRevCW  int
	TicksPerRevCCW int
	HomeAzimuth    float64
}

func (g Geometry) ticksPerDegree(dir state.Direction) float64 {
	if dir == state.CCW {
		return float64(g.TicksPerRevCCW) / 360.0
	}
	return float64(g.TicksPerRevCW) / 360.0
}

// TicksForDegrees returns the whole encoder ticks nearest to deg degrees
// of travel in dir, plus the sub-tick remainder in ticks rounded to two
// decimals. The remainder is below the resolution of the drive; it is
// reported for diagnostics, not compensated.
func (g Geometry) TicksForDegrees(deg float64, dir state.Direction) (int64, float64) {
	exact := deg * g.ticksPerDegree(dir)
	whole := math.Round(exact)
	frac := math.Round((exact-whole)*100) / 100
	return int64(whole), frac
}

// DegreesForTicks converts a counter delta into signed degrees of travel:
// positive CW, negative CCW. The counter itself only ever counts up.
func (g Geometry) DegreesForTicks(ticks int64, dir state.Direction) float64 {
	deg := float64(ticks) / g.ticksPerDegree(dir)
	if dir == state.CCW {
		return -deg
	}
	return deg
}

// Position advances last by the travel of delta ticks in dir, wrapping
// into [0, 360). When the home switch is asserted the known home azimuth
// overrides the dead-reckoned value, since the switch is ground truth and
// the encoder only an estimate.
func (g Geometry) Position(last float64, delta int64, dir state.Direction, atHome bool) float64 {
	if atHome {
		return normalizeDegrees(g.HomeAzimuth)
	}
	return normalizeDegrees(last + g.DegreesForTicks(delta, dir))
}

// ShortestPath returns the direction and angular distance of the shorter
// way from current to target. A tie at exactly 180 degrees goes CW.
func (g Geometry) ShortestPath(current, target float64) (state.Direction, float64) {
	current = normalizeDegrees(current)
	target = normalizeDegrees(target)
	cw := normalizeDegrees(target - current)
	ccw := normalizeDegrees(current - target)
	if cw <= ccw {
		return state.CW, cw
	}
	return state.CCW, ccw
}

// normalizeDegrees wraps deg into [0, 360).
func normalizeDegrees(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}
