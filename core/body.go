package core

import (
	"github.com/signalsfoundry/robot-arena/model"
)

// Body is the physics engine's working copy of one agent. The engine
// mutates bodies only inside Step; callers publish the resulting status
// and commands once Step returns.
type Body struct {
	Status   model.AgentStatus
	Commands model.AgentCommands
	Leader   bool

	lastX            float64
	lastY            float64
	lastHeading      float64
	lastGunHeading   float64
	lastRadarHeading float64

	inCollision   bool
	scanRequested bool
	pendingFire   *model.FireRequest
	killedBy      model.AgentID
	diedThisTick  bool
}

// Alive reports whether the body still takes part in the battle.
func (b *Body) Alive() bool { return b.Status.State != model.LifecycleDead }

func (b *Body) beginTick() {
	if b.Status.State != model.LifecycleDead {
		b.Status.State = model.LifecycleActive
	}
	b.lastX, b.lastY = b.Status.X, b.Status.Y
	b.lastHeading = b.Status.Heading
	b.lastGunHeading = b.Status.GunHeading
	b.lastRadarHeading = b.Status.RadarHeading
}

func (b *Body) moved() bool {
	s := &b.Status
	return b.lastX != s.X || b.lastY != s.Y ||
		b.lastHeading != s.Heading ||
		b.lastGunHeading != s.GunHeading ||
		b.lastRadarHeading != s.RadarHeading
}

// setEnergy applies an energy change. Values below 0.01 collapse to zero
// and cancel any outstanding movement.
func (b *Body) setEnergy(energy float64) {
	b.Status.Energy = energy
	if b.Status.Energy < 0.01 {
		b.Status.Energy = 0
		b.Commands.DistanceRemaining = 0
		b.Commands.TurnRemaining = 0
	}
}

func (b *Body) kill(by model.AgentID) {
	if !b.Alive() {
		return
	}
	b.Status.Energy = 0
	b.Status.Velocity = 0
	b.Status.State = model.LifecycleDead
	b.Commands.DistanceRemaining = 0
	b.Commands.TurnRemaining = 0
	b.killedBy = by
	b.diedThisTick = true
}

// Kill marks the body dead outside of a physics step, as the host does for
// disabled or forcibly stopped agents. The death is reported by the next Step.
func (b *Body) Kill() { b.kill("") }
