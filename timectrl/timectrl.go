package timectrl

import (
	"context"
	"sync"
	"time"
)

// TickClock exposes the current tick to components that only need to read it.
type TickClock interface {
	// Tick returns the number of ticks completed so far.
	Tick() int64
}

// Mode describes how the TimeController paces ticks.
type Mode int

const (
	// RealTime spaces ticks Interval apart on the wall clock.
	RealTime Mode = iota
	// Accelerated runs the next tick as soon as the previous one finishes.
	Accelerated
)

// TimeController drives the tick counter, paces it and gates it while paused.
// Pause and Resume may be called from any goroutine; they take effect at the
// next tick boundary.
type TimeController struct {
	mu       sync.Mutex
	Interval time.Duration
	Mode     Mode

	tick     int64
	lastTick time.Time

	paused  bool
	resumed chan struct{}

	listeners []func(int64)
}

// NewTimeController constructs a controller.
func NewTimeController(interval time.Duration, mode Mode) *TimeController {
	resumed := make(chan struct{})
	close(resumed)
	return &TimeController{
		Interval: interval,
		Mode:     mode,
		resumed:  resumed,
	}
}

// Tick returns the number of ticks completed so far. Implements TickClock.
func (tc *TimeController) Tick() int64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.tick
}

// SetTick overrides the tick counter.
func (tc *TimeController) SetTick(tick int64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tick = tick
}

// AddListener registers a callback invoked after every tick advance.
func (tc *TimeController) AddListener(fn func(int64)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Pause holds the clock at the next tick boundary.
func (tc *TimeController) Pause() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.paused {
		return
	}
	tc.paused = true
	tc.resumed = make(chan struct{})
}

// Resume releases a paused clock.
func (tc *TimeController) Resume() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.paused {
		return
	}
	tc.paused = false
	close(tc.resumed)
}

// Paused reports whether the clock is paused.
func (tc *TimeController) Paused() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.paused
}

// Wait blocks until the next tick may start: while paused it waits for
// Resume, and in RealTime mode it then waits out the rest of Interval.
func (tc *TimeController) Wait(ctx context.Context) error {
	tc.mu.Lock()
	resumed := tc.resumed
	tc.mu.Unlock()

	select {
	case <-resumed:
	case <-ctx.Done():
		return ctx.Err()
	}

	tc.mu.Lock()
	var delay time.Duration
	if tc.Mode == RealTime && !tc.lastTick.IsZero() {
		delay = time.Until(tc.lastTick.Add(tc.Interval))
	}
	tc.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Advance increments the tick counter, notifies listeners and returns the
// new tick.
func (tc *TimeController) Advance() int64 {
	tc.mu.Lock()
	tc.tick++
	tick := tc.tick
	tc.lastTick = time.Now()
	listeners := append([]func(int64){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(tick)
	}
	return tick
}

// Start runs step once per tick in a separate goroutine until step returns
// false, maxTicks ticks have run (when positive) or ctx is cancelled. The
// tick passed to step is the one being computed; the counter advances after
// step returns. It returns a channel that is closed when the loop finishes.
func (tc *TimeController) Start(ctx context.Context, maxTicks int64, step func(tick int64) bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			current := tc.Tick()
			if maxTicks > 0 && current >= maxTicks {
				return
			}
			if err := tc.Wait(ctx); err != nil {
				return
			}
			keepGoing := step(current + 1)
			tc.Advance()
			if !keepGoing {
				return
			}
		}
	}()
	return done
}
