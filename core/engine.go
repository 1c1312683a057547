package core

import (
	"math"

	"github.com/signalsfoundry/robot-arena/model"
)

// Engine advances the physical state of every body once per tick. It is
// deterministic: identical bodies and commands produce identical results.
// An Engine is owned by a single goroutine.
type Engine struct {
	rules Rules
	arena Arena

	bullets      []*bullet
	nextBulletID int

	inactiveTurns    int
	inactivityEnergy float64
}

// NewEngine builds an engine for the given arena and rules.
func NewEngine(arena Arena, rules Rules) *Engine {
	return &Engine{rules: rules, arena: arena}
}

func (e *Engine) Rules() Rules { return e.rules }
func (e *Engine) Arena() Arena { return e.arena }

// NewBody places a fresh agent at (x, y) facing heading.
func (e *Engine) NewBody(id model.AgentID, name, team string, x, y, heading float64, leader, droid bool) *Body {
	heading = NormalAbsoluteAngle(heading)
	b := &Body{
		Status: model.AgentStatus{
			ID:           id,
			Name:         name,
			Team:         team,
			Droid:        droid,
			X:            x,
			Y:            y,
			Heading:      heading,
			GunHeading:   heading,
			RadarHeading: heading,
			Energy:       e.rules.StartingEnergy(leader, droid),
			GunHeat:      e.rules.InitialGunHeat,
			State:        model.LifecycleActive,
			MaxVelocity:  e.rules.MaxVelocity,
		},
		Commands: model.NewAgentCommands(e.rules.MaxVelocity, e.rules.MaxTurnRate),
		Leader:   leader,
	}
	e.refreshDerived(b)
	b.lastRadarHeading = heading
	return b
}

// Apply installs freshly committed commands on b. Caps are clamped so an
// agent can tighten but never loosen the rule limits.
func (e *Engine) Apply(b *Body, cmds model.AgentCommands) {
	if !b.Alive() {
		return
	}
	cmds.MaxVelocity = math.Min(math.Abs(cmds.MaxVelocity), e.rules.MaxVelocity)
	cmds.MaxTurnRate = math.Min(math.Abs(cmds.MaxTurnRate), e.rules.MaxTurnRate)
	if cmds.Scan {
		b.scanRequested = true
	}
	if cmds.Fire != nil {
		fire := *cmds.Fire
		b.pendingFire = &fire
	}
	cmds.Fire = nil
	cmds.Scan = false
	if b.Status.Energy == 0 {
		cmds.DistanceRemaining = 0
		cmds.TurnRemaining = 0
	}
	b.Commands = cmds
}

// Step runs one tick over bodies in the given order and returns the
// events it produced, in emission order.
func (e *Engine) Step(tick int64, bodies []*Body) []model.Event {
	var events []model.Event
	emit := func(ev model.Event) {
		ev.Tick = tick
		events = append(events, ev)
	}

	for _, b := range bodies {
		if b.Alive() {
			b.beginTick()
		}
	}

	e.moveBullets(bodies, emit)

	for _, b := range bodies {
		if !b.Alive() {
			continue
		}
		e.fire(b)
		e.updateGunHeat(b)
		if !b.inCollision {
			e.updateHeading(b)
		}
		e.updateGunHeading(b)
		e.updateRadarHeading(b)
		e.updateMovement(b)
		e.refreshDerived(b)
		e.checkWallCollision(b, emit)
		e.checkRobotCollision(b, bodies, emit)
		if b.Status.Energy == 0 {
			b.kill("")
		}
	}

	e.zapInactive(bodies)
	e.reportDeaths(bodies, emit)

	for _, b := range bodies {
		if !b.Alive() || b.Status.Droid {
			b.scanRequested = false
			continue
		}
		if b.scanRequested || b.moved() {
			e.scan(b, bodies, emit)
		}
		b.scanRequested = false
	}

	others := 0
	for _, b := range bodies {
		if b.Alive() {
			others++
		}
	}
	for _, b := range bodies {
		b.Status.Tick = tick
		b.Status.Others = others
		if b.Alive() {
			b.Status.Others--
		}
		b.Status.DistanceRemaining = b.Commands.DistanceRemaining
		b.Status.TurnRemaining = b.Commands.TurnRemaining
		b.Status.GunTurnRemaining = b.Commands.GunTurnRemaining
		b.Status.RadarTurnRemaining = b.Commands.RadarTurnRemaining
		b.Status.MaxVelocity = b.Commands.MaxVelocity
	}
	return events
}

// Bullets returns the published view of every bullet still tracked.
func (e *Engine) Bullets() []model.BulletStatus {
	out := make([]model.BulletStatus, 0, len(e.bullets))
	for _, bl := range e.bullets {
		out = append(out, bl.status())
	}
	return out
}

func (e *Engine) refreshDerived(b *Body) {
	b.Status.BoundingBox = model.RectAround(b.Status.X, b.Status.Y, e.rules.CollisionBoxSize)
}

func (e *Engine) updateGunHeat(b *Body) {
	b.Status.GunHeat = math.Max(b.Status.GunHeat-e.rules.GunCoolingRate, 0)
}

func (e *Engine) updateHeading(b *Body) {
	c := &b.Commands
	if c.TurnRemaining == 0 {
		return
	}
	step := stepToward(c.TurnRemaining, e.rules.TurnRate(b.Status.Velocity, c.MaxTurnRate))
	b.Status.Heading += step
	b.Status.GunHeading += step
	b.Status.RadarHeading += step
	if c.AdjustGunForBodyTurn {
		c.GunTurnRemaining -= step
	}
	if c.AdjustRadarForBodyTurn {
		c.RadarTurnRemaining -= step
	}
	c.TurnRemaining -= step
	if c.TurnRemaining == 0 {
		b.Status.Heading = NormalNearAbsoluteAngle(b.Status.Heading)
	} else {
		b.Status.Heading = NormalAbsoluteAngle(b.Status.Heading)
	}
}

func (e *Engine) updateGunHeading(b *Body) {
	c := &b.Commands
	if c.GunTurnRemaining != 0 {
		step := stepToward(c.GunTurnRemaining, e.rules.GunTurnRate)
		b.Status.GunHeading += step
		b.Status.RadarHeading += step
		if c.AdjustRadarForGunTurn {
			c.RadarTurnRemaining -= step
		}
		c.GunTurnRemaining -= step
	}
	b.Status.GunHeading = NormalAbsoluteAngle(b.Status.GunHeading)
}

func (e *Engine) updateRadarHeading(b *Body) {
	c := &b.Commands
	if c.RadarTurnRemaining != 0 {
		step := stepToward(c.RadarTurnRemaining, e.rules.RadarTurnRate)
		b.Status.RadarHeading += step
		c.RadarTurnRemaining -= step
	}
	b.Status.RadarHeading = NormalAbsoluteAngle(b.Status.RadarHeading)
}

func (e *Engine) zapInactive(bodies []*Body) {
	if e.rules.InactivityTurns <= 0 {
		return
	}
	e.inactiveTurns++
	if e.inactiveTurns <= e.rules.InactivityTurns {
		return
	}
	for _, b := range bodies {
		if !b.Alive() {
			continue
		}
		b.Status.Energy -= e.rules.InactivityZapAmount
		if b.Status.Energy < e.rules.InactivityZapAmount {
			b.setEnergy(0)
			b.kill("")
		}
	}
}

// noteEnergyLoss counts damage as activity. Every 10 points of energy lost
// restarts the inactivity countdown.
func (e *Engine) noteEnergyLoss(loss float64) {
	if loss <= 0 {
		return
	}
	e.inactivityEnergy += loss
	for e.inactivityEnergy >= 10 {
		e.inactivityEnergy -= 10
		e.inactiveTurns = 0
	}
}

func (e *Engine) reportDeaths(bodies []*Body, emit func(model.Event)) {
	for _, dead := range bodies {
		if !dead.diedThisTick {
			continue
		}
		dead.diedThisTick = false
		emit(model.Event{Kind: model.EventDeath, Agent: dead.Status.ID, Other: dead.killedBy})
		for _, b := range bodies {
			if b == dead || !b.Alive() {
				continue
			}
			emit(model.Event{Kind: model.EventRobotDeath, Agent: b.Status.ID, Other: dead.Status.ID})
		}
	}
}
