package agents

import (
	"context"
	"math"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
)

// Rammer hunts the closest agent it scans and drives into it.
type Rammer struct {
	target   model.AgentID
	bearing  float64
	distance float64
	seen     bool
}

func (a *Rammer) OnEvent(ev model.Event) {
	switch ev.Kind {
	case model.EventScanned:
		if !a.seen || ev.Other == a.target || ev.Distance < a.distance {
			a.target, a.bearing, a.distance, a.seen = ev.Other, ev.Bearing, ev.Distance, true
		}
	case model.EventRobotDeath:
		if ev.Other == a.target {
			a.seen = false
		}
	}
}

func (a *Rammer) Run(_ context.Context, r proxy.BasicRobot) error {
	std, ok := r.(proxy.StandardRobot)
	if !ok {
		return errTier
	}
	std.SetAdjustGunForBodyTurn(false)
	for {
		if !a.seen {
			if err := std.TurnRadar(core.Radians(45)); err != nil {
				return err
			}
			continue
		}
		a.seen = false
		if err := std.Turn(a.bearing); err != nil {
			return err
		}
		if err := std.Move(math.Min(a.distance+5, 120)); err != nil {
			return err
		}
		if err := std.Rescan(); err != nil {
			return err
		}
	}
}
