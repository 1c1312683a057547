package state

import (
	"sync"

	"github.com/signalsfoundry/robot-arena/model"
)

// Accessor guards one agent's status and command buffers.
//
// The tick goroutine owns the status buffer and the resolved commands (the
// command state left behind by the last physics step). The agent goroutine
// owns a private staging copy that it commits here when it synchronizes.
// Every cross-goroutine access goes through the lock helpers below, which
// release on every exit path including panics and runtime.Goexit.
//
// sync.RWMutex blocks new readers once a writer is waiting, so a stream of
// observer reads cannot starve the tick goroutine's writes.
type Accessor struct {
	mu sync.RWMutex

	status    model.AgentStatus
	resolved  model.AgentCommands
	committed model.AgentCommands
	fresh     bool
}

// NewAccessor returns an accessor seeded with the initial status and commands.
func NewAccessor(status model.AgentStatus, cmds model.AgentCommands) *Accessor {
	return &Accessor{status: status, resolved: cmds}
}

// WithReadLock runs fn while holding the read lock. fn must not modify the
// buffers it receives or call back into the accessor.
func (a *Accessor) WithReadLock(fn func(status *model.AgentStatus, cmds *model.AgentCommands) error) error {
	if fn == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fn(&a.status, &a.resolved)
}

// WithWriteLock runs fn while holding the write lock. fn must not call back
// into the accessor.
func (a *Accessor) WithWriteLock(fn func(status *model.AgentStatus, cmds *model.AgentCommands) error) error {
	if fn == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(&a.status, &a.resolved)
}

// Status returns a copy of the published status.
func (a *Accessor) Status() model.AgentStatus {
	var out model.AgentStatus
	_ = a.WithReadLock(func(s *model.AgentStatus, _ *model.AgentCommands) error {
		out = *s
		return nil
	})
	return out
}

// Resolved returns a copy of the commands as left by the last physics step.
// Agents rebuild their staging buffer from it after every wake.
func (a *Accessor) Resolved() model.AgentCommands {
	var out model.AgentCommands
	_ = a.WithReadLock(func(_ *model.AgentStatus, c *model.AgentCommands) error {
		out = *c
		return nil
	})
	return out
}

// Commit hands the agent's staged commands to the tick goroutine. A later
// commit before the next tick replaces an earlier one. Commit and
// TakeCommitted hold the write lock over the commit buffer only, which
// WithWriteLock does not expose.
func (a *Accessor) Commit(cmds model.AgentCommands) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = cmds
	a.fresh = true
}

// TakeCommitted returns the pending commit, if any, and clears it.
func (a *Accessor) TakeCommitted() (model.AgentCommands, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.fresh {
		return model.AgentCommands{}, false
	}
	a.fresh = false
	return a.committed, true
}

// Publish swaps in the status and resolved commands produced by a tick.
func (a *Accessor) Publish(status model.AgentStatus, resolved model.AgentCommands) {
	_ = a.WithWriteLock(func(s *model.AgentStatus, c *model.AgentCommands) error {
		*s = status
		*c = resolved
		return nil
	})
}
