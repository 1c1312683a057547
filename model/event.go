package model

// EventKind classifies an engine event.
type EventKind int

const (
	EventScanned EventKind = iota + 1
	EventHitByBullet
	EventWallHit
	EventRobotHit
	EventBulletHit
	EventBulletMissed
	EventRobotDeath
	EventMessage
	EventCustom
	EventSkippedTurn
	EventWin
	EventDeath
	EventDisabled
)

var eventKindNames = map[EventKind]string{
	EventScanned:      "scanned",
	EventHitByBullet:  "hit_by_bullet",
	EventWallHit:      "wall_hit",
	EventRobotHit:     "robot_hit",
	EventBulletHit:    "bullet_hit",
	EventBulletMissed: "bullet_missed",
	EventRobotDeath:   "robot_death",
	EventMessage:      "message",
	EventCustom:       "custom",
	EventSkippedTurn:  "skipped_turn",
	EventWin:          "win",
	EventDeath:        "death",
	EventDisabled:     "disabled",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// EventKinds lists every kind in declaration order.
func EventKinds() []EventKind {
	return []EventKind{
		EventScanned, EventHitByBullet, EventWallHit, EventRobotHit,
		EventBulletHit, EventBulletMissed, EventRobotDeath, EventMessage,
		EventCustom, EventSkippedTurn, EventWin, EventDeath, EventDisabled,
	}
}

// DefaultPriority returns the delivery priority of k. Higher values are
// delivered first.
func (k EventKind) DefaultPriority() int {
	switch k {
	case EventScanned:
		return 10
	case EventHitByBullet:
		return 20
	case EventWallHit:
		return 30
	case EventRobotHit:
		return 40
	case EventBulletHit:
		return 50
	case EventBulletMissed:
		return 60
	case EventRobotDeath:
		return 70
	case EventMessage:
		return 75
	case EventCustom:
		return 80
	default:
		return 100
	}
}

// Event is one engine occurrence addressed to Agent. Fields not relevant
// to Kind stay zero.
type Event struct {
	Tick  int64
	Kind  EventKind
	Agent AgentID
	Other AgentID

	// Bearing is relative to the recipient's body heading, in (-π, π].
	Bearing  float64
	Distance float64
	Heading  float64
	Velocity float64
	Energy   float64
	Damage   float64
	Power    float64

	AtFault bool
	// Killed is set on robot-hit and bullet-hit events when the other
	// agent died from this hit, crediting the kill to Agent.
	Killed   bool
	BulletID int

	// Name carries the custom condition name for EventCustom.
	Name    string
	Payload []byte
	Reason  string
}
