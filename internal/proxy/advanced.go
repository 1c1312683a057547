package proxy

import (
	"io"
	"math"

	"github.com/signalsfoundry/robot-arena/model"
)

// Advanced exposes non-blocking setters and explicit synchronization.
type Advanced struct {
	*Standard
	files *Quota
}

// NewAdvanced wraps a standard tier. files may be nil, in which case the
// agent has no data directory and every write exceeds its quota.
func NewAdvanced(s *Standard, files *Quota) *Advanced {
	return &Advanced{Standard: s, files: files}
}

func (a *Advanced) SetMove(distance float64)  { a.setMove(distance) }
func (a *Advanced) SetTurnBody(angle float64) { a.setTurnBody(angle) }
func (a *Advanced) SetTurnGun(angle float64)  { a.setTurnGun(angle) }
func (a *Advanced) SetTurnRadar(angle float64) {
	a.setTurnRadar(angle)
}

// SetFire stages a shot for the next Execute and reports whether it was
// accepted.
func (a *Advanced) SetFire(power float64) bool { return a.setFire(power) }

func (a *Advanced) SetStop()   { a.setStop(false) }
func (a *Advanced) SetResume() { a.setResume() }

// SetMaxVelocity caps the body speed. Caps can only tighten the rules.
func (a *Advanced) SetMaxVelocity(v float64) {
	a.countSet()
	if math.IsNaN(v) {
		return
	}
	a.staged.MaxVelocity = math.Min(math.Abs(v), a.cfg.Rules.MaxVelocity)
}

// SetMaxTurnRate caps the body turn rate in radians per tick.
func (a *Advanced) SetMaxTurnRate(rate float64) {
	a.countSet()
	if math.IsNaN(rate) {
		return
	}
	a.staged.MaxTurnRate = math.Min(math.Abs(rate), a.cfg.Rules.MaxTurnRate)
}

// Execute commits every staged command and waits for the next tick.
func (a *Advanced) Execute() error { return a.execute() }

// WaitFor yields ticks until cond holds. cond is checked after each tick.
func (a *Advanced) WaitFor(cond func() bool) error {
	return a.executeUntil(cond)
}

func (a *Advanced) AddCustomEvent(name string, cond func() bool) error {
	a.countSet()
	return a.queue.addCondition(name, cond)
}

func (a *Advanced) RemoveCustomEvent(name string) {
	a.countSet()
	a.queue.removeCondition(name)
}

func (a *Advanced) SetEventPriority(kind model.EventKind, priority int) error {
	a.countSet()
	return a.queue.setPriority(kind, priority)
}

func (a *Advanced) EventPriority(kind model.EventKind) int {
	a.countGet()
	return a.queue.priority(kind)
}

// DataFile opens name in the agent's data directory for writing.
func (a *Advanced) DataFile(name string) (io.WriteCloser, error) {
	a.checkpoint()
	if a.files == nil {
		return nil, ErrQuotaExceeded
	}
	f, err := a.files.Create(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (a *Advanced) ReadDataFile(name string) ([]byte, error) {
	a.checkpoint()
	if a.files == nil {
		return nil, ErrInvalidFileName
	}
	return a.files.Read(name)
}

func (a *Advanced) DataQuotaAvailable() int64 {
	a.countGet()
	if a.files == nil {
		return 0
	}
	return a.files.Available()
}
