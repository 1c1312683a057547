package host

import (
	"errors"
	"fmt"
)

// State is a point in an agent's lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateRunning
	StateDied
	StateWon
	StateDisabled
	StateForciblyStopped
	StateCleanedUp
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateDied:
		return "died"
	case StateWon:
		return "won"
	case StateDisabled:
		return "disabled"
	case StateForciblyStopped:
		return "forcibly_stopped"
	case StateCleanedUp:
		return "cleaned_up"
	default:
		return "unknown"
	}
}

// Terminal reports whether the agent can no longer run.
func (s State) Terminal() bool { return s >= StateDied }

// OutcomeKind classifies how an agent's run ended.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeDeath
	OutcomeWin
	OutcomeDisabled
	OutcomeLoadError
	OutcomeForcedStop
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeDeath:
		return "death"
	case OutcomeWin:
		return "win"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeLoadError:
		return "load_error"
	case OutcomeForcedStop:
		return "forced_stop"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of an agent's run.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Misbehaved reports whether the outcome by itself forfeits the agent's
// score. A forced stop does not; the battle decides whether the timeouts
// behind it were repeated.
func (o Outcome) Misbehaved() bool {
	return o.Kind == OutcomeDisabled
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
}

var errInvalidTransition = errors.New("invalid lifecycle transition")

// transitions lists the allowed moves between non-terminal states. Any
// running agent may reach any terminal state; terminal states only move on
// to StateCleanedUp.
var transitions = map[State][]State{
	StateUnloaded: {StateLoaded, StateDied},
	StateLoaded:   {StateRunning, StateForciblyStopped, StateDied, StateWon},
	StateRunning:  {StateDied, StateWon, StateDisabled, StateForciblyStopped},
}

func canTransition(from, to State) bool {
	if to == StateCleanedUp {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
