package model

// BulletState tracks a bullet from firing to impact.
type BulletState int

const (
	BulletFlying BulletState = iota
	BulletHitVictim
	BulletHitWall
)

// BulletStatus is the published view of one bullet.
type BulletStatus struct {
	ID       int
	Owner    AgentID
	Victim   AgentID
	X        float64
	Y        float64
	Heading  float64
	Power    float64
	Velocity float64
	State    BulletState
}
