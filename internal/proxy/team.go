package proxy

import (
	"fmt"
	"sync/atomic"

	"github.com/signalsfoundry/robot-arena/model"
)

// Team adds membership queries and messaging between teammates.
type Team struct {
	*Advanced
	self   model.AgentID
	team   model.TeamRecord
	office atomic.Pointer[postBox]
}

type postBox struct{ Postmaster }

// NewTeam wraps an advanced tier for agent self, a member of team.
func NewTeam(a *Advanced, self model.AgentID, team model.TeamRecord, office Postmaster) *Team {
	members := append([]model.AgentID(nil), team.Members...)
	team.Members = members
	t := &Team{Advanced: a, self: self, team: team}
	if office != nil {
		t.office.Store(&postBox{office})
	}
	return t
}

func (t *Team) post(to model.AgentID, payload []byte) error {
	box := t.office.Load()
	if box == nil {
		return nil
	}
	return box.Post(t.self, to, payload)
}

func (t *Team) TeamName() string {
	t.countGet()
	return t.team.Name
}

// Teammates lists the other members of the team.
func (t *Team) Teammates() []model.AgentID {
	t.countGet()
	out := make([]model.AgentID, 0, len(t.team.Members))
	for _, id := range t.team.Members {
		if id != t.self {
			out = append(out, id)
		}
	}
	return out
}

func (t *Team) IsTeammate(id model.AgentID) bool {
	t.countGet()
	return id != t.self && t.team.Contains(id)
}

func (t *Team) SendMessage(to model.AgentID, payload []byte) error {
	t.countSet()
	if to == t.self || !t.team.Contains(to) {
		return fmt.Errorf("%w: %s", ErrNotTeammate, to)
	}
	return t.post(to, payload)
}

// BroadcastMessage sends payload to every teammate.
func (t *Team) BroadcastMessage(payload []byte) error {
	t.countSet()
	for _, id := range t.team.Members {
		if id == t.self {
			continue
		}
		if err := t.post(id, payload); err != nil {
			return err
		}
	}
	return nil
}

// Detach also drops the route to the postmaster.
func (t *Team) Detach() {
	t.Advanced.Detach()
	t.office.Store(nil)
}
