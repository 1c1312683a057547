package proxy

import "errors"

// Signals returned to agent code from blocking actions. They are agent
// local: the host inspects them once the agent's run step ends.
var (
	// ErrDeath reports that the agent's energy reached zero.
	ErrDeath = errors.New("agent is dead")
	// ErrWin reports that the battle ended with this agent among the survivors.
	ErrWin = errors.New("battle won")
	// ErrDisabled reports that the agent broke a runtime rule.
	ErrDisabled = errors.New("agent disabled")
	// ErrForcedStop reports that the host is stopping the agent.
	ErrForcedStop = errors.New("agent forcibly stopped")
)

// Errors returned by individual capability operations.
var (
	// ErrQuotaExceeded indicates a data file write would exceed the agent's quota.
	ErrQuotaExceeded = errors.New("data quota exceeded")
	// ErrInvalidFileName indicates a data file name escapes the agent's directory.
	ErrInvalidFileName = errors.New("invalid data file name")
	// ErrNotTeammate indicates a message was addressed outside the agent's team.
	ErrNotTeammate = errors.New("recipient is not a teammate")
	// ErrInvalidPriority indicates an event priority outside 0..99 or a fixed kind.
	ErrInvalidPriority = errors.New("invalid event priority")
	// ErrDuplicateCondition indicates a custom event name is already registered.
	ErrDuplicateCondition = errors.New("custom event already registered")
)
