package host

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

// Default timeouts.
const (
	DefaultTurnTimeout    = 50 * time.Millisecond
	DefaultStartupTimeout = 2 * time.Second
	DefaultStopTimeout    = 200 * time.Millisecond
)

// Options configures one host.
type Options struct {
	ID   model.AgentID
	Name string
	Kind string
	Tier proxy.Tier
	Team model.TeamRecord

	Rules       core.Rules
	Arena       core.Arena
	MaxGetCalls int64
	MaxSetCalls int64

	// DataDir, when set, gives advanced agents a quota-limited directory.
	DataDir   string
	DataQuota int64

	StopTimeout time.Duration
	Seed        int64
	Log         logging.Logger
}

// SyncResult is how a wait for an agent's synchronization ended.
type SyncResult int

const (
	Synced SyncResult = iota
	TimedOut
	Exited
)

type wakeMsg struct {
	seq    uint64
	events []model.Event
	signal error
}

// Host owns one agent goroutine. The battle goroutine drives it through
// Load, Start, Wake, WaitSync, ForceStop and Cleanup.
type Host struct {
	opts Options
	acc  *state.Accessor
	log  logging.Logger

	chain *proxy.Chain
	agent Agent

	ctx    context.Context
	cancel context.CancelFunc

	wake   chan wakeMsg
	synced chan uint64
	done   chan struct{}

	// wakeSeq numbers the wakes sent by the battle goroutine; turn is the
	// last one the agent goroutine received. A sync token carries turn, so
	// a late sync for an earlier wake is never taken for the current one.
	wakeSeq uint64
	turn    atomic.Uint64

	started   atomic.Bool
	stopping  atomic.Bool
	abandoned atomic.Bool

	mu       sync.Mutex
	state    State
	outcome  Outcome
	signal   error
	disabled string

	cleanupOnce sync.Once
}

// New builds an unloaded host bound to acc.
func New(opts Options, acc *state.Accessor) *Host {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Log == nil {
		opts.Log = logging.Noop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		opts:   opts,
		acc:    acc,
		log:    opts.Log.With(logging.String("agent_id", string(opts.ID)), logging.String("agent", opts.Name)),
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan wakeMsg, 1),
		synced: make(chan uint64, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the hosted agent's identity.
func (h *Host) ID() model.AgentID { return h.opts.ID }

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Outcome returns how the agent's run ended so far.
func (h *Host) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Done is closed when the agent goroutine has exited.
func (h *Host) Done() <-chan struct{} { return h.done }

// Abandoned reports whether a forced stop gave up waiting for the goroutine.
func (h *Host) Abandoned() bool { return h.abandoned.Load() }

// terminate moves the host to a terminal state unless it already reached one.
func (h *Host) terminate(to State, out Outcome) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() || !canTransition(h.state, to) {
		return false
	}
	h.state = to
	h.outcome = out
	return true
}

func (h *Host) setState(to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !canTransition(h.state, to) {
		return fmt.Errorf("%w: %s -> %s", errInvalidTransition, h.state, to)
	}
	h.state = to
	return nil
}

// Load constructs the agent and its proxy chain. A failure leaves the host
// dead with OutcomeLoadError; the caller drains the body's energy.
func (h *Host) Load(ctx context.Context, loader Loader, office proxy.Postmaster) error {
	var files *proxy.Quota
	if h.opts.DataDir != "" && h.opts.Tier >= proxy.TierAdvanced {
		q, err := proxy.NewQuota(h.opts.DataDir, h.opts.DataQuota)
		if err != nil {
			return h.failLoad(&LoadError{Kind: h.opts.Kind, Err: err})
		}
		files = q
	}
	env := Env{
		ID:      h.opts.ID,
		Name:    h.opts.Name,
		Tier:    h.opts.Tier,
		Log:     h.log,
		Rand:    rand.New(rand.NewSource(h.opts.Seed)),
		DataDir: h.opts.DataDir,
	}
	agent, err := loader.Load(ctx, h.opts.Kind, env)
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			err = &LoadError{Kind: h.opts.Kind, Err: err}
		}
		return h.failLoad(err)
	}

	h.chain = proxy.NewChain(proxy.ChainOptions{
		Config: proxy.Config{
			Name:        h.opts.Name,
			Rules:       h.opts.Rules,
			Arena:       h.opts.Arena,
			MaxGetCalls: h.opts.MaxGetCalls,
			MaxSetCalls: h.opts.MaxSetCalls,
		},
		Tier:   h.opts.Tier,
		Self:   h.opts.ID,
		Team:   h.opts.Team,
		Office: office,
		Files:  files,
	}, h.acc, binding{h})
	if handler, ok := agent.(proxy.EventHandler); ok {
		h.chain.SetHandler(handler)
	}
	h.agent = agent
	if err := h.setState(StateLoaded); err != nil {
		return err
	}
	h.log.Debug(h.ctx, "agent loaded", logging.String("kind", h.opts.Kind), logging.String("tier", h.opts.Tier.String()))
	return nil
}

func (h *Host) failLoad(err error) error {
	h.terminate(StateDied, Outcome{Kind: OutcomeLoadError, Reason: err.Error(), Err: err})
	h.started.Store(true)
	close(h.done)
	h.log.Warn(h.ctx, "agent failed to load", logging.Err(err))
	return err
}

// Start launches the agent goroutine. Agent code does not run until the
// first Wake.
func (h *Host) Start() {
	if h.State() != StateLoaded || !h.started.CompareAndSwap(false, true) {
		return
	}
	agent, robot := h.agent, h.chain.Robot()
	go h.run(agent, robot)
}

func (h *Host) run(agent Agent, robot proxy.BasicRobot) {
	returned := false
	var runErr error
	defer func() {
		h.finish(recover(), returned, runErr)
	}()

	var first wakeMsg
	select {
	case first = <-h.wake:
		h.turn.Store(first.seq)
	case <-h.ctx.Done():
		returned = true
		return
	}
	if first.signal != nil {
		h.noteSignal(first.signal)
		returned = true
		return
	}
	if err := h.setState(StateRunning); err != nil {
		returned = true
		return
	}

	runErr = agent.Run(h.ctx, robot)
	if runErr == nil {
		// Idle until the battle ends.
		for robot.DoNothing() == nil {
		}
	}
	returned = true
}

// finish classifies the end of the agent goroutine. It runs on every exit
// path including panics and runtime.Goexit.
func (h *Host) finish(panicked any, returned bool, runErr error) {
	defer close(h.done)

	h.mu.Lock()
	signal, disabled := h.signal, h.disabled
	h.mu.Unlock()

	switch {
	case panicked != nil:
		h.terminate(StateDisabled, Outcome{Kind: OutcomeDisabled, Reason: fmt.Sprintf("panic: %v", panicked)})
	case disabled != "":
		h.terminate(StateDisabled, Outcome{Kind: OutcomeDisabled, Reason: disabled, Err: proxy.ErrDisabled})
	case h.stopping.Load():
		h.terminate(StateForciblyStopped, Outcome{Kind: OutcomeForcedStop, Reason: "stopped by host", Err: proxy.ErrForcedStop})
	case errors.Is(signal, proxy.ErrWin) || errors.Is(runErr, proxy.ErrWin):
		h.terminate(StateWon, Outcome{Kind: OutcomeWin, Err: proxy.ErrWin})
	case errors.Is(signal, proxy.ErrDeath) || errors.Is(runErr, proxy.ErrDeath):
		h.terminate(StateDied, Outcome{Kind: OutcomeDeath, Err: proxy.ErrDeath})
	case runErr != nil:
		h.terminate(StateDisabled, Outcome{Kind: OutcomeDisabled, Reason: runErr.Error(), Err: runErr})
	case !returned:
		h.terminate(StateDisabled, Outcome{Kind: OutcomeDisabled, Reason: "agent goroutine exited"})
	default:
		h.terminate(StateDied, Outcome{Kind: OutcomeDeath, Err: proxy.ErrDeath})
	}
	out := h.Outcome()
	if out.Misbehaved() {
		h.log.Warn(h.ctx, "agent terminated", logging.String("outcome", out.String()))
	} else {
		h.log.Debug(h.ctx, "agent finished", logging.String("outcome", out.String()))
	}
}

func (h *Host) noteSignal(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signal == nil {
		h.signal = err
	}
}

// notifySynced replaces any unread token with one for the agent's
// current turn. Only the agent goroutine sends on h.synced.
func (h *Host) notifySynced() {
	select {
	case <-h.synced:
	default:
	}
	select {
	case h.synced <- h.turn.Load():
	default:
	}
}

// Wake releases the agent for the next tick with the events produced by
// the previous one. It reports false when the agent goroutine has exited.
//
// An agent still busy with an earlier turn has not taken its last wake.
// That wake is folded into this one so no events are lost, and the agent
// resumes at the current turn.
func (h *Host) Wake(events []model.Event, signal error) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	h.wakeSeq++
	msg := wakeMsg{seq: h.wakeSeq, events: events, signal: signal}
	select {
	case prev := <-h.wake:
		msg.events = append(prev.events, events...)
		if msg.signal == nil {
			msg.signal = prev.signal
		}
	default:
	}
	// Only the battle goroutine sends, so the buffer has room.
	select {
	case h.wake <- msg:
	default:
	}
	return true
}

// WaitSync blocks until the agent synchronizes for the latest wake, exits
// or timeout passes. Tokens left by late synchronizations for earlier
// wakes are discarded.
func (h *Host) WaitSync(timeout time.Duration) SyncResult {
	want := h.wakeSeq
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case <-h.done:
			return Exited
		default:
		}
		if timeout <= 0 {
			select {
			case seq := <-h.synced:
				if seq == want {
					return Synced
				}
				continue
			default:
				return TimedOut
			}
		}
		select {
		case seq := <-h.synced:
			if seq != want {
				continue
			}
			select {
			case <-h.done:
				return Exited
			default:
				return Synced
			}
		case <-h.done:
			return Exited
		case <-expired:
			return TimedOut
		}
	}
}

// ForceStop cancels the agent and waits up to the stop timeout for its
// goroutine to exit. A goroutine that does not exit in time is abandoned:
// it can no longer reach the host or the battle.
func (h *Host) ForceStop(reason string) bool {
	h.stopping.Store(true)
	h.cancel()
	if h.started.CompareAndSwap(false, true) {
		h.terminate(StateForciblyStopped, Outcome{Kind: OutcomeForcedStop, Reason: reason, Err: proxy.ErrForcedStop})
		close(h.done)
		return true
	}
	if h.awaitExit() {
		h.overrideReason(reason)
		return true
	}
	h.terminate(StateForciblyStopped, Outcome{Kind: OutcomeForcedStop, Reason: reason, Err: proxy.ErrForcedStop})
	h.abandon(reason)
	return false
}

// End delivers the battle's final signal, ErrWin for survivors and
// ErrDeath otherwise, and waits for the agent to wind down. An agent that
// keeps running past the stop timeout keeps the outcome the signal implies
// and is then cancelled like any other.
func (h *Host) End(events []model.Event, signal error) Outcome {
	h.noteSignal(signal)
	if !h.started.Load() {
		h.terminateBySignal(signal)
		h.ForceStop("battle over")
		return h.Outcome()
	}
	if h.Wake(events, signal) && !h.awaitExit() {
		h.terminateBySignal(signal)
		h.ForceStop("battle over")
	}
	return h.Outcome()
}

// ForceStopOutcome stops the agent and returns its outcome.
func (h *Host) ForceStopOutcome(reason string) Outcome {
	h.ForceStop(reason)
	return h.Outcome()
}

func (h *Host) terminateBySignal(signal error) {
	if errors.Is(signal, proxy.ErrWin) {
		h.terminate(StateWon, Outcome{Kind: OutcomeWin, Err: proxy.ErrWin})
		return
	}
	h.terminate(StateDied, Outcome{Kind: OutcomeDeath, Err: proxy.ErrDeath})
}

func (h *Host) awaitExit() bool {
	timer := time.NewTimer(h.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

func (h *Host) abandon(reason string) {
	h.abandoned.Store(true)
	if h.chain != nil {
		h.chain.Detach()
	}
	h.log.Warn(h.ctx, "agent goroutine abandoned", logging.String("reason", reason))
}

func (h *Host) overrideReason(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome.Kind == OutcomeForcedStop {
		h.outcome.Reason = reason
	}
}

// Cleanup severs every reference between the agent and the battle. It is
// safe to call more than once. The agent's own Cleanup runs once its
// goroutine has exited; for an abandoned agent that is whenever its next
// proxy call ends it.
func (h *Host) Cleanup() {
	h.cleanupOnce.Do(func() {
		h.stopping.Store(true)
		h.cancel()
		if h.chain != nil {
			h.chain.Detach()
		}
		if h.started.CompareAndSwap(false, true) {
			close(h.done)
		}
		if c, ok := h.agent.(Cleaner); ok {
			select {
			case <-h.done:
				h.safeCleanup(c)
			default:
				go func() {
					<-h.done
					h.safeCleanup(c)
				}()
			}
		}
		h.agent = nil
		h.mu.Lock()
		h.state = StateCleanedUp
		h.mu.Unlock()
	})
}

func (h *Host) safeCleanup(c Cleaner) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Warn(h.ctx, "agent cleanup panicked", logging.Any("panic", p))
		}
	}()
	c.Cleanup()
}

// binding is the host side of the proxy chain.
type binding struct{ h *Host }

func (b binding) Sync() ([]model.Event, error) {
	h := b.h
	h.notifySynced()
	select {
	case msg := <-h.wake:
		h.turn.Store(msg.seq)
		if msg.signal != nil {
			h.noteSignal(msg.signal)
		}
		return msg.events, msg.signal
	case <-h.ctx.Done():
		runtime.Goexit()
		return nil, proxy.ErrForcedStop
	}
}

func (b binding) Stopping() bool { return b.h.stopping.Load() }

func (b binding) Disable(reason string) {
	h := b.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disabled == "" {
		h.disabled = reason
	}
}
