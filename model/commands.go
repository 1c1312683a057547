package model

// AgentCommands is the pending-command record staged by agent code and
// consumed by the physics engine at the start of each tick.
type AgentCommands struct {
	DistanceRemaining  float64
	TurnRemaining      float64
	GunTurnRemaining   float64
	RadarTurnRemaining float64

	// MoveDirection is -1, 0 or +1.
	MoveDirection int
	SlowingDown   bool

	AdjustGunForBodyTurn   bool
	AdjustRadarForBodyTurn bool
	AdjustRadarForGunTurn  bool

	MaxVelocity float64
	MaxTurnRate float64

	// Fire is the pending shot, nil when no shot is requested.
	Fire *FireRequest
	// Scan requests an out-of-turn radar scan.
	Scan bool

	// Stopped holds the counters saved by a stop until the matching resume.
	Stopped bool
	Saved   SavedMotion
}

// FireRequest is a staged shot.
type FireRequest struct {
	Power float64
}

// SavedMotion is the snapshot of remaining counters taken by a stop.
type SavedMotion struct {
	Distance  float64
	Turn      float64
	GunTurn   float64
	RadarTurn float64
}

// NewAgentCommands returns a command record with the given caps.
func NewAgentCommands(maxVelocity, maxTurnRate float64) AgentCommands {
	return AgentCommands{
		MaxVelocity: maxVelocity,
		MaxTurnRate: maxTurnRate,
	}
}
