package core

import "math"

// updateMovement advances velocity and position. The agent accelerates
// toward its move direction until the distance it could still cover while
// braking at the deceleration rate would just reach the remaining distance,
// then brakes so that it stops on target.
func (e *Engine) updateMovement(b *Body) {
	c := &b.Commands
	s := &b.Status
	if c.DistanceRemaining == 0 && s.Velocity == 0 {
		return
	}

	decel := e.rules.Deceleration
	accel := e.rules.Acceleration

	if !c.SlowingDown && c.MoveDirection == 0 {
		c.SlowingDown = true
		c.MoveDirection = sign(s.Velocity)
	}

	desired := c.DistanceRemaining
	if c.SlowingDown {
		if (c.MoveDirection == 1 && desired < 0) || (c.MoveDirection == -1 && desired > 0) {
			desired = 0
		}
	}
	slowDownVelocity := math.Trunc((decel / 2) * (math.Sqrt(4*math.Abs(desired)+1) - 1))
	if c.MoveDirection == -1 {
		slowDownVelocity = -slowDownVelocity
	}

	var acceleration float64
	if !c.SlowingDown {
		switch c.MoveDirection {
		case 1:
			acceleration = accel
			if s.Velocity < 0 {
				acceleration = decel
			}
			if s.Velocity+acceleration > slowDownVelocity {
				c.SlowingDown = true
			}
		case -1:
			acceleration = -accel
			if s.Velocity > 0 {
				acceleration = -decel
			}
			if s.Velocity+acceleration < slowDownVelocity {
				c.SlowingDown = true
			}
		}
	}

	if c.SlowingDown {
		if c.DistanceRemaining != 0 && math.Abs(s.Velocity) <= decel && math.Abs(c.DistanceRemaining) <= decel {
			slowDownVelocity = c.DistanceRemaining
		}
		acceleration = math.Max(-decel, math.Min(decel, slowDownVelocity-s.Velocity))
	}

	limit := c.MaxVelocity
	s.Velocity = math.Max(-limit, math.Min(limit, s.Velocity+acceleration))

	move := compassVec(s.Heading).Mul(s.Velocity)
	s.X += move.X()
	s.Y += move.Y()

	if c.SlowingDown && s.Velocity == 0 {
		c.DistanceRemaining = 0
		c.MoveDirection = 0
		c.SlowingDown = false
	}
	c.DistanceRemaining -= s.Velocity
}
