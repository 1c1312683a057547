package proxy

import (
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/robot-arena/model"
)

// Tier is a capability level granted to agent code.
type Tier int

const (
	TierBasic Tier = iota
	TierStandard
	TierAdvanced
	TierTeam
)

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierStandard:
		return "standard"
	case TierAdvanced:
		return "advanced"
	case TierTeam:
		return "team"
	default:
		return "unknown"
	}
}

// ParseTier converts a tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	for _, t := range []Tier{TierBasic, TierStandard, TierAdvanced, TierTeam} {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return TierBasic, fmt.Errorf("unknown tier %q", s)
}

// BasicRobot is the capability set every agent receives: read-only getters
// and blocking actions.
type BasicRobot interface {
	Name() string
	Time() int64
	Others() int
	ArenaWidth() float64
	ArenaHeight() float64
	GunCoolingRate() float64

	X() float64
	Y() float64
	Heading() float64
	GunHeading() float64
	RadarHeading() float64
	Velocity() float64
	Energy() float64
	GunHeat() float64

	DistanceRemaining() float64
	TurnRemaining() float64
	GunTurnRemaining() float64
	RadarTurnRemaining() float64

	// Move travels distance along the body heading (negative backs up).
	Move(distance float64) error
	// Turn rotates the body by angle radians (positive is clockwise).
	Turn(angle float64) error
	TurnGun(angle float64) error
	TurnRadar(angle float64) error
	// Fire submits a shot and reports whether it left the gun.
	Fire(power float64) (bool, error)
	// DoNothing yields one tick.
	DoNothing() error
}

// StandardRobot adds stop and resume, forced scans and turn coupling.
type StandardRobot interface {
	BasicRobot

	Stop() error
	Resume() error
	Rescan() error
	SetAdjustGunForBodyTurn(adjust bool)
	SetAdjustRadarForBodyTurn(adjust bool)
	SetAdjustRadarForGunTurn(adjust bool)
}

// AdvancedRobot adds non-blocking setters, explicit synchronization, custom
// conditions, event priorities and a private data directory.
type AdvancedRobot interface {
	StandardRobot

	SetMove(distance float64)
	SetTurnBody(angle float64)
	SetTurnGun(angle float64)
	SetTurnRadar(angle float64)
	SetFire(power float64) bool
	SetStop()
	SetResume()
	SetMaxVelocity(v float64)
	SetMaxTurnRate(rate float64)
	Execute() error

	WaitFor(cond func() bool) error
	AddCustomEvent(name string, cond func() bool) error
	RemoveCustomEvent(name string)
	SetEventPriority(kind model.EventKind, priority int) error
	EventPriority(kind model.EventKind) int

	DataFile(name string) (io.WriteCloser, error)
	ReadDataFile(name string) ([]byte, error)
	DataQuotaAvailable() int64
}

// TeamRobot adds team membership and messaging.
type TeamRobot interface {
	AdvancedRobot

	TeamName() string
	Teammates() []model.AgentID
	IsTeammate(id model.AgentID) bool
	SendMessage(to model.AgentID, payload []byte) error
	BroadcastMessage(payload []byte) error
}

// EventHandler receives events after each wake, highest priority first.
type EventHandler interface {
	OnEvent(ev model.Event)
}
