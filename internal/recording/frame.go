package recording

import (
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

// Frame is the JSON form of one published snapshot. The recorder writes
// one frame per line and the observer stream sends the same frames.
type Frame struct {
	BattleID string        `json:"battle_id"`
	Tick     int64         `json:"tick"`
	Paused   bool          `json:"paused,omitempty"`
	Finished bool          `json:"finished,omitempty"`
	Agents   []AgentFrame  `json:"agents"`
	Bullets  []BulletFrame `json:"bullets,omitempty"`
	Events   []EventFrame  `json:"events,omitempty"`
}

type AgentFrame struct {
	ID           model.AgentID `json:"id"`
	Name         string        `json:"name"`
	Team         string        `json:"team,omitempty"`
	State        string        `json:"state"`
	X            float64       `json:"x"`
	Y            float64       `json:"y"`
	Heading      float64       `json:"heading"`
	GunHeading   float64       `json:"gun_heading"`
	RadarHeading float64       `json:"radar_heading"`
	Velocity     float64       `json:"velocity"`
	Energy       float64       `json:"energy"`
	GunHeat      float64       `json:"gun_heat"`
	SkippedTurns int           `json:"skipped_turns,omitempty"`
}

type BulletFrame struct {
	ID      int           `json:"id"`
	Owner   model.AgentID `json:"owner"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Heading float64       `json:"heading"`
	Power   float64       `json:"power"`
}

type EventFrame struct {
	Kind     string        `json:"kind"`
	Agent    model.AgentID `json:"agent"`
	Other    model.AgentID `json:"other,omitempty"`
	Damage   float64       `json:"damage,omitempty"`
	Killed   bool          `json:"killed,omitempty"`
	AtFault  bool          `json:"at_fault,omitempty"`
	BulletID int           `json:"bullet_id,omitempty"`
	Name     string        `json:"name,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// NewFrame converts a snapshot. Message payloads stay private to the
// team that sent them and are not recorded.
func NewFrame(s *state.Snapshot) Frame {
	f := Frame{
		BattleID: s.BattleID,
		Tick:     s.Tick,
		Paused:   s.Paused,
		Finished: s.Finished,
		Agents:   make([]AgentFrame, 0, len(s.Agents)),
	}
	for _, a := range s.Agents {
		f.Agents = append(f.Agents, AgentFrame{
			ID:           a.ID,
			Name:         a.Name,
			Team:         a.Team,
			State:        a.State.String(),
			X:            a.X,
			Y:            a.Y,
			Heading:      a.Heading,
			GunHeading:   a.GunHeading,
			RadarHeading: a.RadarHeading,
			Velocity:     a.Velocity,
			Energy:       a.Energy,
			GunHeat:      a.GunHeat,
			SkippedTurns: a.SkippedTurns,
		})
	}
	for _, b := range s.Bullets {
		f.Bullets = append(f.Bullets, BulletFrame{
			ID:      b.ID,
			Owner:   b.Owner,
			X:       b.X,
			Y:       b.Y,
			Heading: b.Heading,
			Power:   b.Power,
		})
	}
	for _, ev := range s.Events {
		f.Events = append(f.Events, EventFrame{
			Kind:     ev.Kind.String(),
			Agent:    ev.Agent,
			Other:    ev.Other,
			Damage:   ev.Damage,
			Killed:   ev.Killed,
			AtFault:  ev.AtFault,
			BulletID: ev.BulletID,
			Name:     ev.Name,
			Reason:   ev.Reason,
		})
	}
	return f
}
