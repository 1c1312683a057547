package proxy

import (
	"errors"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

// Binding connects a proxy chain to the host running the agent.
type Binding interface {
	// Sync reports that the agent reached its synchronization point and
	// blocks until the next wake. It returns the events delivered with that
	// wake and any terminal signal.
	Sync() ([]model.Event, error)
	// Stopping reports whether the host has cancelled the agent.
	Stopping() bool
	// Disable records a rule violation. The proxy terminates the agent
	// goroutine right after.
	Disable(reason string)
}

// Config carries the per-agent settings of a proxy chain.
type Config struct {
	Name        string
	Rules       core.Rules
	Arena       core.Arena
	MaxGetCalls int64
	MaxSetCalls int64
}

// Basic is the lowest capability tier. Higher tiers embed it and reach
// shared state only through it.
//
// The agent goroutine owns staged: setters write it without locking and
// execute commits it to the accessor at the synchronization point. After
// every wake staged is rebuilt from the resolved commands.
type Basic struct {
	cfg    Config
	acc    *state.Accessor
	bound  atomic.Pointer[boundTo]
	budget *CallBudget

	staged  model.AgentCommands
	signal  error
	handler EventHandler
	queue   *eventQueue

	dispatching bool
	backlog     []model.Event
}

// NewBasic builds the bottom tier of a chain over acc.
func NewBasic(cfg Config, acc *state.Accessor, binding Binding) *Basic {
	b := &Basic{
		cfg:    cfg,
		acc:    acc,
		budget: NewCallBudget(cfg.MaxGetCalls, cfg.MaxSetCalls),
		staged: acc.Resolved(),
		queue:  newEventQueue(),
	}
	b.bound.Store(&boundTo{binding})
	return b
}

type boundTo struct{ Binding }

func (b *Basic) binding() Binding { return b.bound.Load().Binding }

// SetHandler installs the agent's event handler. Called by the host before
// the agent runs.
func (b *Basic) SetHandler(h EventHandler) { b.handler = h }

// Budget exposes the call counters.
func (b *Basic) Budget() *CallBudget { return b.budget }

// Detach drops the chain's route to the host. It may be called from any
// goroutine; later calls into the chain terminate the caller.
func (b *Basic) Detach() {
	b.bound.Store(&boundTo{detached{}})
}

// checkpoint is evaluated on every call into the chain. A cancelled agent
// never returns from it.
func (b *Basic) checkpoint() {
	if b.binding().Stopping() {
		runtime.Goexit()
	}
}

func (b *Basic) disable(reason string) {
	b.binding().Disable(reason)
	runtime.Goexit()
}

func (b *Basic) countGet() {
	b.checkpoint()
	if !b.budget.Get() {
		b.disable("too many get calls without yielding a turn")
	}
}

func (b *Basic) countSet() {
	b.checkpoint()
	if !b.budget.Set() {
		b.disable("too many set calls without yielding a turn")
	}
}

func (b *Basic) read(fn func(s *model.AgentStatus) float64) float64 {
	b.countGet()
	var v float64
	_ = b.acc.WithReadLock(func(s *model.AgentStatus, _ *model.AgentCommands) error {
		v = fn(s)
		return nil
	})
	return v
}

func (b *Basic) Name() string {
	b.countGet()
	return b.cfg.Name
}

func (b *Basic) Time() int64 {
	return int64(b.read(func(s *model.AgentStatus) float64 { return float64(s.Tick) }))
}

func (b *Basic) Others() int {
	return int(b.read(func(s *model.AgentStatus) float64 { return float64(s.Others) }))
}

func (b *Basic) ArenaWidth() float64 {
	b.countGet()
	return b.cfg.Arena.Width
}

func (b *Basic) ArenaHeight() float64 {
	b.countGet()
	return b.cfg.Arena.Height
}

func (b *Basic) GunCoolingRate() float64 {
	b.countGet()
	return b.cfg.Rules.GunCoolingRate
}

func (b *Basic) X() float64 { return b.read(func(s *model.AgentStatus) float64 { return s.X }) }
func (b *Basic) Y() float64 { return b.read(func(s *model.AgentStatus) float64 { return s.Y }) }

func (b *Basic) Heading() float64 {
	return b.read(func(s *model.AgentStatus) float64 { return s.Heading })
}

func (b *Basic) GunHeading() float64 {
	return b.read(func(s *model.AgentStatus) float64 { return s.GunHeading })
}

func (b *Basic) RadarHeading() float64 {
	return b.read(func(s *model.AgentStatus) float64 { return s.RadarHeading })
}

func (b *Basic) Velocity() float64 {
	return b.read(func(s *model.AgentStatus) float64 { return s.Velocity })
}

func (b *Basic) Energy() float64 {
	return b.read(func(s *model.AgentStatus) float64 { return s.Energy })
}

func (b *Basic) GunHeat() float64 {
	return b.read(func(s *model.AgentStatus) float64 { return s.GunHeat })
}

// Remaining counters come from the staging buffer, which already reflects
// the agent's own pending changes.

func (b *Basic) DistanceRemaining() float64 {
	b.countGet()
	return b.staged.DistanceRemaining
}

func (b *Basic) TurnRemaining() float64 {
	b.countGet()
	return b.staged.TurnRemaining
}

func (b *Basic) GunTurnRemaining() float64 {
	b.countGet()
	return b.staged.GunTurnRemaining
}

func (b *Basic) RadarTurnRemaining() float64 {
	b.countGet()
	return b.staged.RadarTurnRemaining
}

func (b *Basic) Move(distance float64) error {
	b.setMove(distance)
	return b.executeUntil(func() bool { return b.staged.DistanceRemaining == 0 })
}

func (b *Basic) Turn(angle float64) error {
	b.setTurnBody(angle)
	return b.executeUntil(func() bool { return b.staged.TurnRemaining == 0 })
}

func (b *Basic) TurnGun(angle float64) error {
	b.setTurnGun(angle)
	return b.executeUntil(func() bool { return b.staged.GunTurnRemaining == 0 })
}

func (b *Basic) TurnRadar(angle float64) error {
	b.setTurnRadar(angle)
	return b.executeUntil(func() bool { return b.staged.RadarTurnRemaining == 0 })
}

func (b *Basic) Fire(power float64) (bool, error) {
	staged := b.setFire(power)
	if err := b.execute(); err != nil {
		return false, err
	}
	return staged && b.GunHeat() > 0, nil
}

func (b *Basic) DoNothing() error {
	return b.execute()
}

func (b *Basic) setMove(distance float64) {
	b.countSet()
	if math.IsNaN(distance) || b.Energy() == 0 {
		return
	}
	b.staged.DistanceRemaining = distance
	b.staged.MoveDirection = signOf(distance)
	b.staged.SlowingDown = false
}

func (b *Basic) setTurnBody(angle float64) {
	b.countSet()
	if math.IsNaN(angle) || b.Energy() == 0 {
		return
	}
	b.staged.TurnRemaining = angle
}

func (b *Basic) setTurnGun(angle float64) {
	b.countSet()
	if math.IsNaN(angle) {
		return
	}
	b.staged.GunTurnRemaining = angle
}

func (b *Basic) setTurnRadar(angle float64) {
	b.countSet()
	if math.IsNaN(angle) {
		return
	}
	b.staged.RadarTurnRemaining = angle
}

// setFire stages a shot when the gun is cold and the agent can pay for it.
func (b *Basic) setFire(power float64) bool {
	b.countSet()
	if math.IsNaN(power) {
		return false
	}
	power = b.cfg.Rules.ClampPower(power)
	ok := false
	_ = b.acc.WithReadLock(func(s *model.AgentStatus, _ *model.AgentCommands) error {
		ok = s.GunHeat == 0 && s.Energy >= power
		return nil
	})
	if !ok {
		return false
	}
	b.staged.Fire = &model.FireRequest{Power: power}
	return true
}

func (b *Basic) executeUntil(done func() bool) error {
	for {
		if err := b.execute(); err != nil {
			return err
		}
		if done() {
			return nil
		}
	}
}

// execute commits the staged commands and blocks until the next tick.
func (b *Basic) execute() error {
	b.checkpoint()

	if b.signal != nil {
		if errors.Is(b.signal, ErrDeath) {
			b.disable("blocking call after death")
		}
		runtime.Goexit()
	}

	if b.Energy() <= 0 {
		b.signal = ErrDeath
		return ErrDeath
	}

	b.acc.Commit(b.staged)
	events, err := b.binding().Sync()
	b.staged = b.acc.Resolved()
	b.budget.Reset()

	if err != nil {
		b.signal = err
	}
	b.deliver(events, err == nil)
	return err
}

// deliver hands events to the agent's handler, highest priority first.
// Events that arrive while a handler is running are kept for the next
// outermost delivery.
func (b *Basic) deliver(events []model.Event, evaluateConditions bool) {
	if evaluateConditions {
		events = append(events, b.fireConditions()...)
	}
	if b.dispatching {
		b.backlog = append(b.backlog, events...)
		return
	}
	if b.handler == nil {
		return
	}
	b.dispatching = true
	defer func() { b.dispatching = false }()

	pending := append(b.backlog, events...)
	b.backlog = nil
	for len(pending) > 0 {
		for _, ev := range b.queue.order(pending) {
			b.handler.OnEvent(ev)
		}
		pending = b.backlog
		b.backlog = nil
	}
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

type detached struct{}

func (detached) Sync() ([]model.Event, error) { return nil, ErrForcedStop }
func (detached) Stopping() bool               { return true }
func (detached) Disable(string)               {}
