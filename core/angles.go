package core

import "math"

const (
	twoPi  = 2 * math.Pi
	halfPi = math.Pi / 2

	// nearDelta absorbs floating point drift when snapping headings to
	// cardinal directions.
	nearDelta = 1e-5
)

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// NormalAbsoluteAngle maps angle into [0, 2π).
func NormalAbsoluteAngle(angle float64) float64 {
	angle = math.Mod(angle, twoPi)
	if angle < 0 {
		angle += twoPi
	}
	if angle >= twoPi {
		angle = 0
	}
	return angle
}

// NormalRelativeAngle maps angle into (-π, π].
func NormalRelativeAngle(angle float64) float64 {
	angle = math.Mod(angle, twoPi)
	switch {
	case angle <= -math.Pi:
		angle += twoPi
	case angle > math.Pi:
		angle -= twoPi
	}
	return angle
}

// NormalNearAbsoluteAngle is NormalAbsoluteAngle that also snaps values
// within nearDelta of a cardinal direction onto it.
func NormalNearAbsoluteAngle(angle float64) float64 {
	angle = NormalAbsoluteAngle(angle)
	for _, cardinal := range [...]float64{0, halfPi, math.Pi, 3 * halfPi, twoPi} {
		if math.Abs(angle-cardinal) < nearDelta {
			if cardinal == twoPi {
				return 0
			}
			return cardinal
		}
	}
	return angle
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// stepToward returns the signed step that brings remaining closer to zero
// by at most rate, never overshooting.
func stepToward(remaining, rate float64) float64 {
	if remaining > 0 {
		return math.Min(remaining, rate)
	}
	return math.Max(remaining, -rate)
}
