package proxy

import (
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

// ChainOptions selects the tier of a chain and supplies what the upper
// tiers need.
type ChainOptions struct {
	Config
	Tier   Tier
	Self   model.AgentID
	Team   model.TeamRecord
	Office Postmaster
	Files  *Quota
}

// Chain is a fully assembled delegation chain. Only the declared tier is
// handed to agent code.
type Chain struct {
	tier  Tier
	basic *Basic
	robot BasicRobot
	team  *Team
}

// NewChain assembles Basic, Standard, Advanced and Team up to opts.Tier.
func NewChain(opts ChainOptions, acc *state.Accessor, binding Binding) *Chain {
	c := &Chain{tier: opts.Tier}
	c.basic = NewBasic(opts.Config, acc, binding)
	c.robot = c.basic
	if opts.Tier >= TierStandard {
		std := NewStandard(c.basic)
		c.robot = std
		if opts.Tier >= TierAdvanced {
			adv := NewAdvanced(std, opts.Files)
			c.robot = adv
			if opts.Tier >= TierTeam {
				c.team = NewTeam(adv, opts.Self, opts.Team, opts.Office)
				c.robot = c.team
			}
		}
	}
	return c
}

// Tier returns the declared tier.
func (c *Chain) Tier() Tier { return c.tier }

// Robot returns the capability surface for the declared tier.
func (c *Chain) Robot() BasicRobot { return c.robot }

// SetHandler installs the event handler on the shared bottom tier.
func (c *Chain) SetHandler(h EventHandler) { c.basic.SetHandler(h) }

// Budget returns the call counters of the chain.
func (c *Chain) Budget() *CallBudget { return c.basic.Budget() }

// Detach severs the chain from the host, the battle and the agent's handler.
func (c *Chain) Detach() {
	if c.team != nil {
		c.team.Detach()
		return
	}
	c.basic.Detach()
}
