package agents

import (
	"context"
	"encoding/json"
	"math"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
)

// sighting is the message squad members exchange.
type sighting struct {
	Target model.AgentID `json:"target"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Tick   int64         `json:"tick"`
}

// Squad is a team agent. Members broadcast every enemy they scan and all
// of them fire at the most recent sighting, whoever made it.
type Squad struct {
	env host.Env
	r   proxy.TeamRobot

	latest   sighting
	have     bool
	received int
}

// Received returns how many teammate messages this member has read.
func (s *Squad) Received() int { return s.received }

func (s *Squad) OnEvent(ev model.Event) {
	switch ev.Kind {
	case model.EventScanned:
		if s.r.IsTeammate(ev.Other) {
			return
		}
		absolute := s.r.Heading() + ev.Bearing
		seen := sighting{
			Target: ev.Other,
			X:      s.r.X() + math.Sin(absolute)*ev.Distance,
			Y:      s.r.Y() + math.Cos(absolute)*ev.Distance,
			Tick:   ev.Tick,
		}
		s.latest, s.have = seen, true
		if payload, err := json.Marshal(seen); err == nil {
			_ = s.r.BroadcastMessage(payload)
		}
	case model.EventMessage:
		var seen sighting
		if err := json.Unmarshal(ev.Payload, &seen); err != nil {
			return
		}
		s.received++
		if !s.have || seen.Tick >= s.latest.Tick {
			s.latest, s.have = seen, true
		}
	case model.EventRobotDeath:
		if s.have && ev.Other == s.latest.Target {
			s.have = false
		}
	}
}

func (s *Squad) Run(_ context.Context, r proxy.BasicRobot) error {
	team, ok := r.(proxy.TeamRobot)
	if !ok {
		return errTier
	}
	s.r = team
	team.SetAdjustRadarForGunTurn(true)
	team.SetAdjustGunForBodyTurn(true)
	for {
		team.SetTurnRadar(core.Radians(45))
		if s.have {
			dx, dy := s.latest.X-team.X(), s.latest.Y-team.Y()
			angle := math.Atan2(dx, dy)
			team.SetTurnGun(core.NormalRelativeAngle(angle - team.GunHeading()))
			if team.GunHeat() == 0 && math.Abs(team.GunTurnRemaining()) < core.Radians(5) {
				team.SetFire(math.Min(3, 500/math.Max(1, math.Hypot(dx, dy))))
			}
		} else {
			team.SetTurnBody(core.Radians(20))
			team.SetMove(40)
		}
		if err := team.Execute(); err != nil {
			return err
		}
	}
}
