package battle

import (
	"time"

	"github.com/signalsfoundry/robot-arena/internal/stats"
	"github.com/signalsfoundry/robot-arena/model"
)

// AgentResult is how one agent finished.
type AgentResult struct {
	ID           model.AgentID `json:"id"`
	Name         string        `json:"name"`
	Team         string        `json:"team,omitempty"`
	Outcome      string        `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	Survived     bool          `json:"survived"`
	Misbehaved   bool          `json:"misbehaved"`
	SkippedTurns int           `json:"skipped_turns"`
	Energy       float64       `json:"energy"`
}

// Result summarises a finished battle.
type Result struct {
	BattleID string          `json:"battle_id"`
	Ticks    int64           `json:"ticks"`
	Duration time.Duration   `json:"duration_ns"`
	Aborted  bool            `json:"aborted"`
	Winners  []model.AgentID `json:"winners"`
	Agents   []AgentResult   `json:"agents"`
	Scores   []stats.Score   `json:"scores"`
}

// Agent returns the result for id.
func (r *Result) Agent(id model.AgentID) (AgentResult, bool) {
	for _, a := range r.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentResult{}, false
}
