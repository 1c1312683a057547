package core

import "math"

// Rules holds the physical constants of a battle. Angles are radians,
// distances are arena units and rates are per tick.
type Rules struct {
	Acceleration     float64
	Deceleration     float64
	MaxVelocity      float64
	MaxTurnRate      float64
	GunTurnRate      float64
	RadarTurnRate    float64
	RadarScanRadius  float64
	RobotHitDamage   float64
	GunCoolingRate   float64
	InitialGunHeat   float64
	CollisionBoxSize float64

	MinBulletPower float64
	MaxBulletPower float64

	InitialEnergy       float64
	LeaderEnergy        float64
	DroidEnergy         float64
	LeaderDroidEnergy   float64
	InactivityTurns     int
	InactivityZapAmount float64
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		Acceleration:        1,
		Deceleration:        2,
		MaxVelocity:         8,
		MaxTurnRate:         Radians(10),
		GunTurnRate:         Radians(20),
		RadarTurnRate:       Radians(45),
		RadarScanRadius:     1200,
		RobotHitDamage:      0.6,
		GunCoolingRate:      0.1,
		InitialGunHeat:      3,
		CollisionBoxSize:    36,
		MinBulletPower:      0.1,
		MaxBulletPower:      3,
		InitialEnergy:       100,
		LeaderEnergy:        200,
		DroidEnergy:         120,
		LeaderDroidEnergy:   220,
		InactivityTurns:     450,
		InactivityZapAmount: 0.1,
	}
}

// HalfBox is half the collision box side.
func (r Rules) HalfBox() float64 { return r.CollisionBoxSize / 2 }

// TurnRate returns the body turn rate available at the given velocity,
// further capped by the agent's own limit.
func (r Rules) TurnRate(velocity, agentMax float64) float64 {
	rate := r.MaxTurnRate * (0.4 + 0.6*(1-math.Abs(velocity)/r.MaxVelocity))
	return math.Min(agentMax, rate)
}

// WallHitDamage is the energy lost when hitting a wall at velocity.
func WallHitDamage(velocity float64) float64 {
	return math.Max(math.Abs(velocity)/2-1, 0)
}

// BulletDamage is the energy a bullet of the given power removes from its victim.
func BulletDamage(power float64) float64 {
	damage := 4 * power
	if power > 1 {
		damage += 2 * (power - 1)
	}
	return damage
}

// BulletSpeed is the per-tick travel distance of a bullet.
func BulletSpeed(power float64) float64 {
	return 20 - 3*power
}

// GunHeat is the heat added to the gun by firing a bullet of the given power.
func GunHeat(power float64) float64 {
	return 1 + power/5
}

// StartingEnergy returns the initial energy for an agent's role.
func (r Rules) StartingEnergy(leader, droid bool) float64 {
	switch {
	case leader && droid:
		return r.LeaderDroidEnergy
	case leader:
		return r.LeaderEnergy
	case droid:
		return r.DroidEnergy
	default:
		return r.InitialEnergy
	}
}

// ClampPower bounds a requested bullet power to the legal range.
func (r Rules) ClampPower(power float64) float64 {
	return math.Min(math.Max(power, r.MinBulletPower), r.MaxBulletPower)
}
