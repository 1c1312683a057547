package model

// AgentID identifies one hosted agent for the lifetime of a battle.
type AgentID string

// Lifecycle is the per-tick physical state of an agent.
// HitWall and HitRobot only last for the tick in which the collision happened.
type Lifecycle int

const (
	LifecycleActive Lifecycle = iota
	LifecycleHitWall
	LifecycleHitRobot
	LifecycleDead
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "ACTIVE"
	case LifecycleHitWall:
		return "HIT_WALL"
	case LifecycleHitRobot:
		return "HIT_ROBOT"
	case LifecycleDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// AgentStatus is the authoritative physical record of one agent.
// Angles are radians in compass convention: 0 points north (+Y) and
// angles grow clockwise, normalized to [0, 2π).
type AgentStatus struct {
	ID    AgentID
	Name  string
	Team  string
	Droid bool

	X            float64
	Y            float64
	Heading      float64
	GunHeading   float64
	RadarHeading float64
	Velocity     float64
	Energy       float64
	GunHeat      float64
	State        Lifecycle

	BoundingBox Rect
	ScanArc     Arc

	// Remaining counters as last resolved by the physics engine.
	DistanceRemaining  float64
	TurnRemaining      float64
	GunTurnRemaining   float64
	RadarTurnRemaining float64

	// MaxVelocity is the cap currently in force for this agent.
	MaxVelocity float64

	Tick         int64
	Others       int
	SkippedTurns int
}

// Alive reports whether the agent still has energy and has not been marked dead.
func (s AgentStatus) Alive() bool {
	return s.State != LifecycleDead
}
