// Package stats turns battle events into per-agent scores.
package stats

import (
	"sort"

	"github.com/signalsfoundry/robot-arena/model"
)

// Scoring constants.
const (
	SurvivalPoints       = 50
	LastSurvivorPoints   = 10
	BulletKillBonusRatio = 0.20
	RamDamageMultiplier  = 2
	RamKillBonusRatio    = 0.30
)

// Score is one agent's result.
type Score struct {
	ID              model.AgentID `json:"id"`
	Name            string        `json:"name"`
	Team            string        `json:"team,omitempty"`
	Survival        float64       `json:"survival"`
	LastSurvivor    float64       `json:"last_survivor"`
	BulletDamage    float64       `json:"bullet_damage"`
	BulletKillBonus float64       `json:"bullet_kill_bonus"`
	RamDamage       float64       `json:"ram_damage"`
	RamKillBonus    float64       `json:"ram_kill_bonus"`
	Kills           int           `json:"kills"`
	Rank            int           `json:"rank"`
	Survived        bool          `json:"survived"`
	Misbehaved      bool          `json:"misbehaved"`
}

// Total sums every component.
func (s Score) Total() float64 {
	return s.Survival + s.LastSurvivor + s.BulletDamage + s.BulletKillBonus + s.RamDamage + s.RamKillBonus
}

type pair struct{ from, to model.AgentID }

// Scorer accumulates scores over one battle. It is driven from the tick
// goroutine only.
type Scorer struct {
	order  []model.AgentID
	scores map[model.AgentID]*Score
	alive  map[model.AgentID]bool

	bulletDealt map[pair]float64
	ramDealt    map[pair]float64
}

// NewScorer tracks the given agents in placement order.
func NewScorer(agents []model.AgentStatus) *Scorer {
	s := &Scorer{
		scores:      make(map[model.AgentID]*Score, len(agents)),
		alive:       make(map[model.AgentID]bool, len(agents)),
		bulletDealt: make(map[pair]float64),
		ramDealt:    make(map[pair]float64),
	}
	for _, a := range agents {
		s.order = append(s.order, a.ID)
		s.scores[a.ID] = &Score{ID: a.ID, Name: a.Name, Team: a.Team}
		s.alive[a.ID] = true
	}
	return s
}

func (s *Scorer) opponents(a, b model.AgentID) bool {
	sa, sb := s.scores[a], s.scores[b]
	if sa == nil || sb == nil || a == b {
		return false
	}
	return sa.Team == "" || sa.Team != sb.Team
}

// Observe folds one tick's events into the running scores.
func (s *Scorer) Observe(events []model.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case model.EventBulletHit:
			if !s.opponents(ev.Agent, ev.Other) {
				continue
			}
			sc := s.scores[ev.Agent]
			sc.BulletDamage += ev.Damage
			key := pair{ev.Agent, ev.Other}
			s.bulletDealt[key] += ev.Damage
			if ev.Killed {
				sc.BulletKillBonus += s.bulletDealt[key] * BulletKillBonusRatio
				sc.Kills++
			}
		case model.EventRobotHit:
			if !ev.AtFault || !s.opponents(ev.Agent, ev.Other) {
				continue
			}
			sc := s.scores[ev.Agent]
			sc.RamDamage += ev.Damage * RamDamageMultiplier
			key := pair{ev.Agent, ev.Other}
			s.ramDealt[key] += ev.Damage
			if ev.Killed {
				sc.RamKillBonus += s.ramDealt[key] * RamDamageMultiplier * RamKillBonusRatio
				sc.Kills++
			}
		case model.EventDeath:
			s.died(ev.Agent)
		}
	}
}

func (s *Scorer) died(id model.AgentID) {
	if !s.alive[id] {
		return
	}
	s.alive[id] = false
	for _, other := range s.order {
		if s.alive[other] && s.opponents(other, id) {
			s.scores[other].Survival += SurvivalPoints
		}
	}
}

// Finish awards the last survivor bonus, zeroes misbehaving agents and
// ranks everyone by total score. It does not change the running totals.
func (s *Scorer) Finish(misbehaved map[model.AgentID]bool) []Score {
	var survivors []model.AgentID
	for _, id := range s.order {
		if s.alive[id] {
			survivors = append(survivors, id)
		}
	}
	bonus := make(map[model.AgentID]float64)
	if len(survivors) > 0 && s.sameSide(survivors) {
		for _, id := range survivors {
			opponents := 0
			for _, other := range s.order {
				if s.opponents(id, other) {
					opponents++
				}
			}
			bonus[id] = float64(LastSurvivorPoints * opponents)
		}
	}

	out := make([]Score, 0, len(s.order))
	for _, id := range s.order {
		sc := *s.scores[id]
		sc.LastSurvivor += bonus[id]
		sc.Survived = s.alive[id]
		if misbehaved[id] {
			sc = Score{ID: sc.ID, Name: sc.Name, Team: sc.Team, Survived: sc.Survived, Misbehaved: true}
		}
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total() > out[j].Total() })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (s *Scorer) sameSide(ids []model.AgentID) bool {
	for _, a := range ids[1:] {
		if s.opponents(ids[0], a) {
			return false
		}
	}
	return true
}

// TeamTotals sums total scores per team. Agents without a team count as
// their own team, keyed by name.
func TeamTotals(scores []Score) map[string]float64 {
	out := make(map[string]float64)
	for _, sc := range scores {
		key := sc.Team
		if key == "" {
			key = sc.Name
		}
		out[key] += sc.Total()
	}
	return out
}
