// Package battle runs the tick loop: it wakes every hosted agent, waits
// for their synchronization, applies the committed commands to the
// physics engine and publishes the result.
package battle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/observability"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/internal/stats"
	"github.com/signalsfoundry/robot-arena/model"
	"github.com/signalsfoundry/robot-arena/roster"
	"github.com/signalsfoundry/robot-arena/timectrl"
)

// DefaultMaxTicks ends battles that never produce a winner.
const DefaultMaxTicks = 10000

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("battle already running")

// Metrics receives tick loop measurements.
type Metrics interface {
	ObserveTick(d time.Duration)
	IncSkippedTurns()
	IncForcedStops()
	RecordOutcome(kind string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTick(time.Duration) {}
func (noopMetrics) IncSkippedTurns()          {}
func (noopMetrics) IncForcedStops()           {}
func (noopMetrics) RecordOutcome(string)      {}

// Options configures a battle.
type Options struct {
	ID    string
	Arena core.Arena
	Rules core.Rules

	MaxTicks int64
	Seed     int64
	Interval time.Duration
	Mode     timectrl.Mode

	TurnTimeout    time.Duration
	StartupTimeout time.Duration
	StopTimeout    time.Duration
	SkipGraceTurns int

	MaxGetCalls     int64
	MaxSetCalls     int64
	DataDir         string
	DataQuota       int64
	MailboxCapacity int

	Loader  host.Loader
	Log     logging.Logger
	Metrics Metrics
	// StateOptions are passed to the battle state, e.g. a metrics recorder.
	StateOptions []state.BattleStateOption
}

func (o *Options) applyDefaults() {
	if o.ID == "" {
		o.ID = logging.NewID()
	}
	if o.Arena.Width <= 0 || o.Arena.Height <= 0 {
		o.Arena = core.Arena{Width: 800, Height: 600}
	}
	if o.Rules == (core.Rules{}) {
		o.Rules = core.DefaultRules()
	}
	if o.MaxTicks <= 0 {
		o.MaxTicks = DefaultMaxTicks
	}
	if o.TurnTimeout <= 0 {
		o.TurnTimeout = host.DefaultTurnTimeout
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = host.DefaultStartupTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = host.DefaultStopTimeout
	}
	if o.SkipGraceTurns < 0 {
		o.SkipGraceTurns = 0
	}
	if o.Log == nil {
		o.Log = logging.Noop()
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
}

type entrant struct {
	participant roster.Participant
	body        *core.Body
	acc         *state.Accessor
	host        *host.Host
	mailbox     *proxy.Mailbox

	pending       []model.Event
	skippedInRow  int
	deathNotified bool
	misbehaved    bool
}

// Battle is one round between the agents of a roster.
type Battle struct {
	opts   Options
	log    logging.Logger
	engine *core.Engine
	state  *state.BattleState
	clock  *timectrl.TimeController
	scorer *stats.Scorer

	entrants []*entrant
	byID     map[model.AgentID]*entrant
	rank     map[model.AgentID]int

	running  atomic.Bool
	aborted  atomic.Bool
	stopping atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	tick   int64
	result *Result
	kills  []model.AgentID
}

// New places the roster's participants and prepares their hosts. Agents
// are not loaded until Run.
func New(opts Options, r *roster.Roster) (*Battle, error) {
	opts.applyDefaults()
	if opts.Loader == nil {
		return nil, errors.New("battle: no agent loader configured")
	}
	participants := r.Participants()
	if len(participants) == 0 {
		return nil, errors.New("battle: roster is empty")
	}

	engine := core.NewEngine(opts.Arena, opts.Rules)
	b := &Battle{
		opts:   opts,
		log:    opts.Log,
		engine: engine,
		state:  state.NewBattleState(opts.ID, opts.Log, opts.StateOptions...),
		clock:  timectrl.NewTimeController(opts.Interval, opts.Mode),
		byID:   make(map[model.AgentID]*entrant, len(participants)),
		rank:   make(map[model.AgentID]int, len(participants)),
	}
	for _, team := range r.Teams() {
		b.state.SetTeam(team)
	}

	starts, err := place(engine, participants, opts.Seed)
	if err != nil {
		return nil, err
	}
	statuses := make([]model.AgentStatus, 0, len(participants))
	for i, p := range participants {
		st := starts[i]
		body := engine.NewBody(p.ID, p.Name, p.Team, st.x, st.y, st.heading, p.Leader, p.Droid)
		acc, err := b.state.AddAgent(body.Status, body.Commands)
		if err != nil {
			return nil, err
		}
		var team model.TeamRecord
		if p.Team != "" {
			team, _ = r.Team(p.Team)
		}
		dataDir := ""
		if opts.DataDir != "" {
			dataDir = filepath.Join(opts.DataDir, p.Name)
		}
		h := host.New(host.Options{
			ID:          p.ID,
			Name:        p.Name,
			Kind:        p.Kind,
			Tier:        p.Tier,
			Team:        team,
			Rules:       opts.Rules,
			Arena:       opts.Arena,
			MaxGetCalls: opts.MaxGetCalls,
			MaxSetCalls: opts.MaxSetCalls,
			DataDir:     dataDir,
			DataQuota:   opts.DataQuota,
			StopTimeout: opts.StopTimeout,
			Seed:        opts.Seed + int64(i) + 1,
			Log:         opts.Log.With(logging.String("battle_id", opts.ID)),
		}, acc)
		e := &entrant{
			participant: p,
			body:        body,
			acc:         acc,
			host:        h,
			mailbox:     proxy.NewMailbox(opts.MailboxCapacity),
		}
		b.entrants = append(b.entrants, e)
		b.byID[p.ID] = e
		b.rank[p.ID] = i
		statuses = append(statuses, body.Status)
	}
	b.scorer = stats.NewScorer(statuses)
	return b, nil
}

// ID returns the battle identifier.
func (b *Battle) ID() string { return b.opts.ID }

// State exposes the published battle state for observers.
func (b *Battle) State() *state.BattleState { return b.state }

// Post routes a team message into the recipient's mailbox.
func (b *Battle) Post(from, to model.AgentID, payload []byte) error {
	e, ok := b.byID[to]
	if !ok {
		return fmt.Errorf("%w: %s", state.ErrAgentNotFound, to)
	}
	e.mailbox.Put(from, to, payload)
	return nil
}

// Run loads every agent and plays the battle to completion. It returns
// when a winner is decided, the tick limit is reached, Stop is called or
// ctx is cancelled.
func (b *Battle) Run(ctx context.Context) (*Result, error) {
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	ctx = logging.ContextWithBattleID(ctx, b.opts.ID)
	ctx, span := observability.StartBattleSpan(ctx, b.opts.ID, len(b.entrants))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	started := time.Now()
	b.load(ctx)
	b.publish(ctx, 0, nil, false)
	b.log.Info(ctx, "battle started", logging.Int("agents", len(b.entrants)), logging.Int64("max_ticks", b.opts.MaxTicks))

	done := b.clock.Start(ctx, b.opts.MaxTicks, func(tick int64) bool {
		return b.step(ctx, tick)
	})
	<-done

	res := b.finish(context.WithoutCancel(ctx), time.Since(started))
	span.SetAttributes(attribute.Int64("battle.ticks", res.Ticks))
	return res, nil
}

// load constructs every agent. Agents that fail to load are dead before
// the first tick.
func (b *Battle) load(ctx context.Context) {
	for _, e := range b.entrants {
		if err := e.host.Load(ctx, b.opts.Loader, b); err != nil {
			e.body.Kill()
			b.log.Warn(ctx, "agent failed to load", logging.String("agent", e.participant.Name), logging.Err(err))
			continue
		}
		e.host.Start()
	}
}

// Pause holds the tick loop at the next tick boundary.
func (b *Battle) Pause() { b.clock.Pause() }

// Resume releases a paused battle.
func (b *Battle) Resume() { b.clock.Resume() }

// Paused reports whether the battle is paused.
func (b *Battle) Paused() bool { return b.clock.Paused() }

// Stop ends the battle at the next tick boundary. A graceful stop still
// resolves the round: a last side standing wins, and the other survivors
// are stopped without blame. A forced stop aborts, and nobody wins an
// aborted battle. A paused battle is resumed so the boundary is reached.
func (b *Battle) Stop(forced bool) {
	if !forced {
		b.stopping.Store(true)
		b.clock.Resume()
		return
	}
	b.aborted.Store(true)
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// KillAgent queues the agent for removal at the next tick boundary, where
// its host is stopped and its body dies like any other death.
func (b *Battle) KillAgent(id model.AgentID) error {
	if _, ok := b.byID[id]; !ok {
		return fmt.Errorf("%w: %s", state.ErrAgentNotFound, id)
	}
	b.mu.Lock()
	b.kills = append(b.kills, id)
	b.mu.Unlock()
	return nil
}

func (b *Battle) takeKills() []model.AgentID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.kills
	b.kills = nil
	return out
}

// Tick returns the last completed tick.
func (b *Battle) Tick() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tick
}

// Result returns the final result once Run has returned.
func (b *Battle) Result() *Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}
