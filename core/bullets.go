package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/robot-arena/model"
)

type bullet struct {
	id      int
	owner   *Body
	pos     mgl64.Vec2
	heading float64
	power   float64
	state   model.BulletState
	victim  model.AgentID
}

func (bl *bullet) velocity() float64 { return BulletSpeed(bl.power) }

func (bl *bullet) status() model.BulletStatus {
	return model.BulletStatus{
		ID:       bl.id,
		Owner:    bl.owner.Status.ID,
		Victim:   bl.victim,
		X:        bl.pos.X(),
		Y:        bl.pos.Y(),
		Heading:  bl.heading,
		Power:    bl.power,
		Velocity: bl.velocity(),
		State:    bl.state,
	}
}

// fire turns a pending fire request into a bullet when the gun is cold and
// the agent can pay for it.
func (e *Engine) fire(b *Body) {
	req := b.pendingFire
	b.pendingFire = nil
	if req == nil {
		return
	}
	power := e.rules.ClampPower(req.Power)
	if b.Status.GunHeat > 0 || b.Status.Energy < power {
		return
	}
	b.setEnergy(b.Status.Energy - power)
	e.noteEnergyLoss(power)
	b.Status.GunHeat += GunHeat(power)

	e.nextBulletID++
	e.bullets = append(e.bullets, &bullet{
		id:      e.nextBulletID,
		owner:   b,
		pos:     mgl64.Vec2{b.Status.X, b.Status.Y},
		heading: b.Status.GunHeading,
		power:   power,
	})
}

// moveBullets advances every flying bullet and resolves hits. Bullets that
// finished on the previous tick are dropped first.
func (e *Engine) moveBullets(bodies []*Body, emit func(model.Event)) {
	flying := e.bullets[:0]
	for _, bl := range e.bullets {
		if bl.state == model.BulletFlying {
			flying = append(flying, bl)
		}
	}
	e.bullets = flying

	for _, bl := range e.bullets {
		from := bl.pos
		bl.pos = from.Add(compassVec(bl.heading).Mul(bl.velocity()))

		for _, victim := range bodies {
			if victim == bl.owner || !victim.Alive() {
				continue
			}
			if !segmentIntersectsRect(from, bl.pos, victim.Status.BoundingBox) {
				continue
			}
			e.resolveHit(bl, victim, emit)
			break
		}
		if bl.state != model.BulletFlying {
			continue
		}
		if bl.pos.X() < 0 || bl.pos.Y() < 0 || bl.pos.X() > e.arena.Width || bl.pos.Y() > e.arena.Height {
			bl.state = model.BulletHitWall
			emit(model.Event{
				Kind:     model.EventBulletMissed,
				Agent:    bl.owner.Status.ID,
				BulletID: bl.id,
				Power:    bl.power,
			})
		}
	}
}

func (e *Engine) resolveHit(bl *bullet, victim *Body, emit func(model.Event)) {
	bl.state = model.BulletHitVictim
	bl.victim = victim.Status.ID
	damage := BulletDamage(bl.power)
	if damage > victim.Status.Energy {
		damage = victim.Status.Energy
	}
	victim.setEnergy(victim.Status.Energy - damage)
	e.noteEnergyLoss(damage)

	killed := false
	if victim.Status.Energy == 0 {
		victim.kill(bl.owner.Status.ID)
		killed = true
	}

	emit(model.Event{
		Kind:     model.EventBulletHit,
		Agent:    bl.owner.Status.ID,
		Other:    victim.Status.ID,
		BulletID: bl.id,
		Power:    bl.power,
		Damage:   damage,
		Energy:   victim.Status.Energy,
		Killed:   killed,
	})
	emit(model.Event{
		Kind:     model.EventHitByBullet,
		Agent:    victim.Status.ID,
		Other:    bl.owner.Status.ID,
		BulletID: bl.id,
		Power:    bl.power,
		Damage:   damage,
		Bearing:  NormalRelativeAngle(bl.heading + math.Pi - victim.Status.Heading),
		Heading:  bl.heading,
	})
}
