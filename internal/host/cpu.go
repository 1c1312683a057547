package host

import (
	"math"
	"time"
)

// Calibration bounds.
const (
	calibrationRounds = 5
	calibrationWork   = 200000
	MinTurnTimeout    = 5 * time.Millisecond
	MaxTurnTimeout    = 2 * time.Second

	// DefaultTurnTimeoutFactor applies when no factor is configured.
	DefaultTurnTimeoutFactor = 10.0
)

// CPUUnit measures how long this machine takes for a fixed floating point
// workload. Turn timeouts are expressed as multiples of it so slower
// hardware gets proportionally more wall time per tick.
func CPUUnit() time.Duration {
	best := time.Duration(math.MaxInt64)
	for i := 0; i < calibrationRounds; i++ {
		start := time.Now()
		sink = workload(calibrationWork)
		if d := time.Since(start); d < best {
			best = d
		}
	}
	return best
}

var sink float64

func workload(n int) float64 {
	acc := 0.0
	for i := 1; i <= n; i++ {
		x := float64(i)
		acc += math.Sqrt(x) * math.Sin(x) / (1 + math.Abs(math.Cos(x)))
	}
	return acc
}

// TurnTimeout converts a factor of the calibrated unit into a bounded wall
// clock timeout. A non-positive factor means DefaultTurnTimeoutFactor.
func TurnTimeout(unit time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		factor = DefaultTurnTimeoutFactor
	}
	d := time.Duration(float64(unit) * factor)
	if d < MinTurnTimeout {
		return MinTurnTimeout
	}
	if d > MaxTurnTimeout {
		return MaxTurnTimeout
	}
	return d
}
