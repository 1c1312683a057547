// Package roster is the in-memory registry of battle participants and the
// teams they form.
package roster

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
)

// Placement pins an agent's starting position. Nil fields are chosen by
// the battle's seeded placement.
type Placement struct {
	X       *float64
	Y       *float64
	Heading *float64
}

// Participant is one agent entered in a battle.
type Participant struct {
	ID     model.AgentID
	Name   string
	Kind   string
	Tier   proxy.Tier
	Team   string
	Leader bool
	Droid  bool
	Start  Placement
}

// Roster is a thread-safe store of participants in entry order.
type Roster struct {
	mu sync.RWMutex

	order        []model.AgentID
	participants map[model.AgentID]*Participant
	teams        map[string]*model.TeamRecord
}

// New constructs an empty roster.
func New() *Roster {
	return &Roster{
		participants: make(map[model.AgentID]*Participant),
		teams:        make(map[string]*model.TeamRecord),
	}
}

// Add enters p. It returns an error if the ID is taken, if a team would get
// a second leader, or if a team member is declared below the team tier.
func (r *Roster) Add(p Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return fmt.Errorf("participant %q has no ID", p.Name)
	}
	if _, exists := r.participants[p.ID]; exists {
		return fmt.Errorf("participant with ID %q already exists", p.ID)
	}
	if p.Team != "" && p.Tier < proxy.TierTeam {
		return fmt.Errorf("participant %q joins team %q but declares tier %s", p.ID, p.Team, p.Tier)
	}
	if p.Leader && p.Team == "" {
		return fmt.Errorf("participant %q leads no team", p.ID)
	}
	if p.Team != "" {
		team, ok := r.teams[p.Team]
		if !ok {
			team = &model.TeamRecord{Name: p.Team}
			r.teams[p.Team] = team
		}
		if p.Leader {
			if team.Leader != "" {
				return fmt.Errorf("team %q already led by %q", p.Team, team.Leader)
			}
			team.Leader = p.ID
		}
		team.Members = append(team.Members, p.ID)
	}
	stored := p
	r.participants[p.ID] = &stored
	r.order = append(r.order, p.ID)
	return nil
}

// Get returns the participant with the given ID.
func (r *Roster) Get(id model.AgentID) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Participants returns every participant in entry order.
func (r *Roster) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

// Team returns a copy of the named team.
func (r *Roster) Team(name string) (model.TeamRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[name]
	if !ok {
		return model.TeamRecord{}, false
	}
	return copyTeam(t), true
}

// Teams returns copies of all teams sorted by name.
func (r *Roster) Teams() []model.TeamRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TeamRecord, 0, len(r.teams))
	for _, t := range r.teams {
		out = append(out, copyTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of participants.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func copyTeam(t *model.TeamRecord) model.TeamRecord {
	out := *t
	out.Members = append([]model.AgentID(nil), t.Members...)
	return out
}
