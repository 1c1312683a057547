// Package agents holds the built-in arena agents: reference opponents for
// every capability tier plus a few that break the rules on purpose.
package agents

import (
	"github.com/signalsfoundry/robot-arena/internal/host"
)

// Register adds every built-in agent to reg.
func Register(reg *host.Registry) {
	reg.Register("sitting_duck", func(host.Env) (host.Agent, error) { return SittingDuck{}, nil })
	reg.Register("walls", func(host.Env) (host.Agent, error) { return &Walls{}, nil })
	reg.Register("rammer", func(host.Env) (host.Agent, error) { return &Rammer{}, nil })
	reg.Register("spinner", func(host.Env) (host.Agent, error) { return &Spinner{}, nil })
	reg.Register("tracker", func(env host.Env) (host.Agent, error) { return &Tracker{env: env}, nil })
	reg.Register("squad", func(env host.Env) (host.Agent, error) { return &Squad{env: env}, nil })
	reg.Register("stalled", func(host.Env) (host.Agent, error) { return Stalled{}, nil })
	reg.Register("panicker", func(host.Env) (host.Agent, error) { return Panicker{}, nil })
}
