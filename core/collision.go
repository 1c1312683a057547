package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/robot-arena/model"
)

// checkWallCollision clamps b inside the arena. The bearing of the wall-hit
// event is relative to the body heading. Wall damage does not count as
// activity for the inactivity countdown.
func (e *Engine) checkWallCollision(b *Body, emit func(model.Event)) {
	s := &b.Status
	half := e.rules.HalfBox()
	hit := false
	velocity := s.Velocity

	wall := func(bearing float64) {
		hit = true
		emit(model.Event{
			Kind:    model.EventWallHit,
			Agent:   s.ID,
			Bearing: NormalRelativeAngle(bearing - s.Heading),
		})
	}

	if s.X > e.arena.Width-half {
		s.X = e.arena.Width - half
		wall(halfPi)
	}
	if s.X < half {
		s.X = half
		wall(3 * halfPi)
	}
	if s.Y > e.arena.Height-half {
		s.Y = e.arena.Height - half
		wall(0)
	}
	if s.Y < half {
		s.Y = half
		wall(math.Pi)
	}
	if !hit {
		return
	}

	s.State = model.LifecycleHitWall
	s.Velocity = 0
	b.Commands.DistanceRemaining = 0
	b.setEnergy(s.Energy - WallHitDamage(velocity))
	e.refreshDerived(b)
}

// checkRobotCollision tests b against every other live body. A body whose
// velocity points into the other is pushed back to its pre-move position;
// both lose the ramming damage.
func (e *Engine) checkRobotCollision(b *Body, bodies []*Body, emit func(model.Event)) {
	s := &b.Status
	b.inCollision = false
	for _, other := range bodies {
		if other == b || !other.Alive() || !b.Alive() {
			continue
		}
		if !s.BoundingBox.Intersects(other.Status.BoundingBox) {
			continue
		}

		angle := compassAngle(mgl64.Vec2{other.Status.X - s.X, other.Status.Y - s.Y})
		bearing := NormalRelativeAngle(angle - s.Heading)

		rammed := (s.Velocity > 0 && bearing > -halfPi && bearing < halfPi) ||
			(s.Velocity < 0 && (bearing < -halfPi || bearing > halfPi))

		atFault := false
		kill := false
		if rammed {
			if (s.Velocity > 0 && b.Commands.DistanceRemaining > 0) ||
				(s.Velocity < 0 && b.Commands.DistanceRemaining < 0) {
				atFault = true
				b.Commands.DistanceRemaining = 0
			}
			s.Velocity = 0
			damage := e.rules.RobotHitDamage
			b.setEnergy(s.Energy - damage)
			other.setEnergy(other.Status.Energy - damage)
			e.noteEnergyLoss(2 * damage)
			b.inCollision = true
			s.X, s.Y = b.lastX, b.lastY
			e.refreshDerived(b)

			if other.Status.Energy == 0 {
				other.kill(s.ID)
				kill = true
			}
		}

		s.State = model.LifecycleHitRobot
		if other.Alive() {
			other.Status.State = model.LifecycleHitRobot
		}

		emit(model.Event{
			Kind:    model.EventRobotHit,
			Agent:   s.ID,
			Other:   other.Status.ID,
			Bearing: bearing,
			Energy:  other.Status.Energy,
			Damage:  damageIf(rammed, e.rules.RobotHitDamage),
			AtFault: atFault,
			Killed:  kill,
		})
		emit(model.Event{
			Kind:    model.EventRobotHit,
			Agent:   other.Status.ID,
			Other:   s.ID,
			Bearing: NormalRelativeAngle(math.Pi + angle - other.Status.Heading),
			Energy:  s.Energy,
			Damage:  damageIf(rammed, e.rules.RobotHitDamage),
		})
	}
}

func damageIf(ok bool, damage float64) float64 {
	if ok {
		return damage
	}
	return 0
}
