package proxy

import "sync/atomic"

// Default call limits per synchronization window.
const (
	DefaultMaxGetCalls = 10000
	DefaultMaxSetCalls = 10000
)

// CallBudget counts getter and setter calls made within one synchronization
// window. The counters reset every time the agent synchronizes.
type CallBudget struct {
	maxGets int64
	maxSets int64
	gets    atomic.Int64
	sets    atomic.Int64
}

// NewCallBudget returns a budget with the given limits. Non-positive limits
// fall back to the defaults.
func NewCallBudget(maxGets, maxSets int64) *CallBudget {
	if maxGets <= 0 {
		maxGets = DefaultMaxGetCalls
	}
	if maxSets <= 0 {
		maxSets = DefaultMaxSetCalls
	}
	return &CallBudget{maxGets: maxGets, maxSets: maxSets}
}

// Get records a getter call and reports whether the budget still holds.
func (b *CallBudget) Get() bool { return b.gets.Add(1) <= b.maxGets }

// Set records a setter call and reports whether the budget still holds.
func (b *CallBudget) Set() bool { return b.sets.Add(1) <= b.maxSets }

// Reset clears both counters.
func (b *CallBudget) Reset() {
	b.gets.Store(0)
	b.sets.Store(0)
}

// Counts returns the calls made in the current window.
func (b *CallBudget) Counts() (gets, sets int64) {
	return b.gets.Load(), b.sets.Load()
}
