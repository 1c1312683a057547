package battle

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/agents"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/observability"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
	"github.com/signalsfoundry/robot-arena/roster"
	"github.com/signalsfoundry/robot-arena/timectrl"
)

func newRegistry(extra map[string]host.Factory) *host.Registry {
	reg := host.NewRegistry()
	agents.Register(reg)
	for kind, f := range extra {
		reg.Register(kind, f)
	}
	return reg
}

func entry(id, kind string, tier proxy.Tier) roster.Participant {
	return roster.Participant{ID: model.AgentID(id), Name: id, Kind: kind, Tier: tier}
}

func pinned(p roster.Participant, x, y, heading float64) roster.Participant {
	p.Start = roster.Placement{X: &x, Y: &y, Heading: &heading}
	return p
}

func newRoster(t *testing.T, ps ...roster.Participant) *roster.Roster {
	t.Helper()
	r := roster.New()
	for _, p := range ps {
		if err := r.Add(p); err != nil {
			t.Fatalf("Add(%s): %v", p.ID, err)
		}
	}
	return r
}

func testOptions(reg *host.Registry) Options {
	return Options{
		ID:             "test-battle",
		Seed:           42,
		Mode:           timectrl.Accelerated,
		TurnTimeout:    time.Second,
		StartupTimeout: 2 * time.Second,
		StopTimeout:    100 * time.Millisecond,
		Loader:         reg,
	}
}

func runBattle(t *testing.T, opts Options, r *roster.Roster) *Result {
	t.Helper()
	b, err := New(opts, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func mustAgent(t *testing.T, res *Result, id string) AgentResult {
	t.Helper()
	a, ok := res.Agent(model.AgentID(id))
	if !ok {
		t.Fatalf("no result for %s", id)
	}
	return a
}

// shooter aims once at a fixed point and fires full power whenever the
// gun is cold.
type shooter struct{ tx, ty float64 }

func (s shooter) Run(_ context.Context, r proxy.BasicRobot) error {
	bearing := math.Atan2(s.tx-r.X(), s.ty-r.Y())
	if err := r.TurnGun(core.NormalRelativeAngle(bearing - r.GunHeading())); err != nil {
		return err
	}
	for {
		if r.GunHeat() == 0 {
			if _, err := r.Fire(3); err != nil {
				return err
			}
			continue
		}
		if err := r.DoNothing(); err != nil {
			return err
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(Options{}, newRoster(t, entry("a", "sitting_duck", proxy.TierBasic))); err == nil {
		t.Fatalf("expected error without a loader")
	}
	if _, err := New(Options{Loader: newRegistry(nil)}, roster.New()); err == nil {
		t.Fatalf("expected error for an empty roster")
	}
}

func TestTickLimitEndsWithoutWinner(t *testing.T) {
	opts := testOptions(newRegistry(nil))
	opts.MaxTicks = 20
	res := runBattle(t, opts, newRoster(t,
		entry("duck-1", "sitting_duck", proxy.TierBasic),
		entry("duck-2", "sitting_duck", proxy.TierBasic),
	))

	if res.Ticks != 20 {
		t.Fatalf("ticks = %d, want 20", res.Ticks)
	}
	if len(res.Winners) != 0 {
		t.Fatalf("winners = %v, want none", res.Winners)
	}
	for _, id := range []string{"duck-1", "duck-2"} {
		a := mustAgent(t, res, id)
		if a.Outcome != "forced_stop" || a.Reason != "tick limit reached" {
			t.Fatalf("%s outcome = %s (%s)", id, a.Outcome, a.Reason)
		}
		if !a.Survived || a.Misbehaved {
			t.Fatalf("%s survived=%v misbehaved=%v", id, a.Survived, a.Misbehaved)
		}
		if a.Energy != 100 {
			t.Fatalf("%s energy = %v, want 100", id, a.Energy)
		}
	}
}

func TestShooterBeatsSittingDuck(t *testing.T) {
	reg := newRegistry(map[string]host.Factory{
		"shooter": func(host.Env) (host.Agent, error) { return shooter{tx: 400, ty: 300}, nil },
	})
	opts := testOptions(reg)
	opts.MaxTicks = 1000
	res := runBattle(t, opts, newRoster(t,
		pinned(entry("gunner", "shooter", proxy.TierBasic), 200, 300, 0),
		pinned(entry("duck", "sitting_duck", proxy.TierBasic), 400, 300, 0),
	))

	if len(res.Winners) != 1 || res.Winners[0] != "gunner" {
		t.Fatalf("winners = %v, want [gunner]", res.Winners)
	}
	if got := mustAgent(t, res, "gunner").Outcome; got != "win" {
		t.Fatalf("gunner outcome = %s, want win", got)
	}
	duck := mustAgent(t, res, "duck")
	if duck.Outcome != "death" || duck.Survived || duck.Energy != 0 {
		t.Fatalf("duck = %+v", duck)
	}
	if duck.Misbehaved {
		t.Fatalf("duck should not be marked misbehaved")
	}

	top := res.Scores[0]
	if top.ID != "gunner" || top.Rank != 1 {
		t.Fatalf("top score = %+v", top)
	}
	if top.Kills != 1 || top.BulletDamage < 100 || top.Survival != 50 || top.LastSurvivor != 10 {
		t.Fatalf("gunner score = %+v", top)
	}
}

// collectDisabled records every disabled event published by b.
func collectDisabled(b *Battle) (events func() []model.Event, unsubscribe func()) {
	var mu sync.Mutex
	var disabled []model.Event
	unsubscribe = b.State().Subscribe(func(s *state.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range s.Events {
			if ev.Kind == model.EventDisabled {
				disabled = append(disabled, ev)
			}
		}
	})
	return func() []model.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]model.Event(nil), disabled...)
	}, unsubscribe
}

func TestStalledAgentIsForciblyStopped(t *testing.T) {
	opts := testOptions(newRegistry(nil))
	opts.TurnTimeout = 20 * time.Millisecond
	opts.StopTimeout = 20 * time.Millisecond
	opts.MaxTicks = 50

	b, err := New(opts, newRoster(t,
		entry("stalled", "stalled", proxy.TierBasic),
		entry("duck", "sitting_duck", proxy.TierBasic),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	disabled, unsubscribe := collectDisabled(b)
	defer unsubscribe()

	began := time.Now()
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(began); elapsed > 5*time.Second {
		t.Fatalf("battle took %v", elapsed)
	}

	// One missed turn stops the agent but is not held against it.
	stalled := mustAgent(t, res, "stalled")
	if stalled.Outcome != "forced_stop" || stalled.Misbehaved || stalled.Survived {
		t.Fatalf("stalled = %+v", stalled)
	}
	if stalled.SkippedTurns != 1 {
		t.Fatalf("skipped turns = %d, want 1", stalled.SkippedTurns)
	}
	if len(res.Winners) != 1 || res.Winners[0] != "duck" {
		t.Fatalf("winners = %v, want [duck]", res.Winners)
	}
	for _, sc := range res.Scores {
		if sc.ID == "stalled" && sc.Misbehaved {
			t.Fatalf("stalled score = %+v", sc)
		}
	}
	if got := disabled(); len(got) != 0 {
		t.Fatalf("disabled events = %+v, want none", got)
	}
}

// slowAgent sleeps outside any robot call on each of its turns in
// [from, to], so those turns overrun the turn timeout.
type slowAgent struct {
	from, to int
	pause    time.Duration
}

func (s slowAgent) Run(_ context.Context, r proxy.BasicRobot) error {
	for turn := 1; ; turn++ {
		if turn >= s.from && turn <= s.to {
			time.Sleep(s.pause)
		}
		if err := r.DoNothing(); err != nil {
			return err
		}
	}
}

func graceOptions(agent slowAgent) Options {
	opts := testOptions(newRegistry(map[string]host.Factory{
		"slow": func(host.Env) (host.Agent, error) { return agent, nil },
	}))
	opts.TurnTimeout = 100 * time.Millisecond
	opts.StopTimeout = 300 * time.Millisecond
	opts.SkipGraceTurns = 2
	opts.MaxTicks = 10
	return opts
}

func TestSlowTurnWithinGraceRecovers(t *testing.T) {
	opts := graceOptions(slowAgent{from: 3, to: 3, pause: 140 * time.Millisecond})
	b, err := New(opts, newRoster(t,
		entry("slow", "slow", proxy.TierBasic),
		entry("duck", "sitting_duck", proxy.TierBasic),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	disabled, unsubscribe := collectDisabled(b)
	defer unsubscribe()

	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ticks != 10 {
		t.Fatalf("ticks = %d, want 10", res.Ticks)
	}
	slow := mustAgent(t, res, "slow")
	if slow.SkippedTurns != 1 || slow.Misbehaved || !slow.Survived {
		t.Fatalf("slow = %+v", slow)
	}
	if slow.Outcome != "forced_stop" || slow.Reason != "tick limit reached" {
		t.Fatalf("slow outcome = %s (%s)", slow.Outcome, slow.Reason)
	}
	if got := disabled(); len(got) != 0 {
		t.Fatalf("disabled events = %+v, want none", got)
	}
}

func TestRepeatedSlowTurnsExhaustGrace(t *testing.T) {
	opts := graceOptions(slowAgent{from: 2, to: math.MaxInt, pause: 150 * time.Millisecond})
	b, err := New(opts, newRoster(t,
		entry("slow", "slow", proxy.TierBasic),
		entry("duck", "sitting_duck", proxy.TierBasic),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	disabled, unsubscribe := collectDisabled(b)
	defer unsubscribe()

	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	slow := mustAgent(t, res, "slow")
	if slow.Outcome != "forced_stop" || !slow.Misbehaved || slow.Survived {
		t.Fatalf("slow = %+v", slow)
	}
	if slow.SkippedTurns != 3 || slow.Reason != "skipped 3 turns in a row" {
		t.Fatalf("skipped turns = %d (%s), want 3", slow.SkippedTurns, slow.Reason)
	}
	if len(res.Winners) != 1 || res.Winners[0] != "duck" {
		t.Fatalf("winners = %v, want [duck]", res.Winners)
	}
	for _, sc := range res.Scores {
		if sc.ID == "slow" && (sc.Total() != 0 || !sc.Misbehaved) {
			t.Fatalf("slow score = %+v", sc)
		}
	}
	got := disabled()
	if len(got) != 1 || got[0].Agent != "slow" || got[0].Reason != "skipped 3 turns in a row" {
		t.Fatalf("disabled events = %+v", got)
	}
}

func TestPanickingAgentIsDisabled(t *testing.T) {
	opts := testOptions(newRegistry(nil))
	opts.MaxTicks = 50

	b, err := New(opts, newRoster(t,
		entry("panicker", "panicker", proxy.TierBasic),
		entry("duck", "sitting_duck", proxy.TierBasic),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	disabled, unsubscribe := collectDisabled(b)
	defer unsubscribe()

	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p := mustAgent(t, res, "panicker")
	if p.Outcome != "disabled" || !p.Misbehaved || p.Survived {
		t.Fatalf("panicker = %+v", p)
	}
	if res.Ticks != 3 {
		t.Fatalf("ticks = %d, want 3", res.Ticks)
	}
	if got := disabled(); len(got) != 1 || got[0].Agent != "panicker" || got[0].Reason == "" {
		t.Fatalf("disabled events = %+v", got)
	}
}

func TestLoadErrorLeavesAgentDead(t *testing.T) {
	opts := testOptions(newRegistry(nil))
	res := runBattle(t, opts, newRoster(t,
		entry("ghost", "no_such_agent", proxy.TierBasic),
		entry("duck", "sitting_duck", proxy.TierBasic),
	))

	ghost := mustAgent(t, res, "ghost")
	if ghost.Outcome != "load_error" || ghost.Survived || ghost.Energy != 0 {
		t.Fatalf("ghost = %+v", ghost)
	}
	if res.Ticks != 1 {
		t.Fatalf("ticks = %d, want 1", res.Ticks)
	}
	if len(res.Winners) != 1 || res.Winners[0] != "duck" {
		t.Fatalf("winners = %v", res.Winners)
	}
}

func TestSameSeedReplaysIdentically(t *testing.T) {
	record := func() [][]model.AgentStatus {
		opts := testOptions(newRegistry(nil))
		opts.MaxTicks = 200
		opts.TurnTimeout = 2 * time.Second
		b, err := New(opts, newRoster(t,
			entry("walls", "walls", proxy.TierBasic),
			entry("spinner", "spinner", proxy.TierAdvanced),
			entry("tracker", "tracker", proxy.TierAdvanced),
			entry("rammer", "rammer", proxy.TierStandard),
		))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		var frames [][]model.AgentStatus
		b.State().Subscribe(func(s *state.Snapshot) {
			frames = append(frames, s.Agents)
		})
		if _, err := b.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return frames
	}

	first, second := record(), record()
	if len(first) != len(second) {
		t.Fatalf("frame count %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Fatalf("frame %d differs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

// duelRun starts an endless battle between two sitting ducks and returns
// the battle and a channel delivering its result.
func duelRun(t *testing.T) (*Battle, <-chan *Result) {
	t.Helper()
	opts := testOptions(newRegistry(nil))
	opts.MaxTicks = 1_000_000
	opts.Rules = core.DefaultRules()
	opts.Rules.InactivityTurns = 0

	b, err := New(opts, newRoster(t,
		entry("duck-1", "sitting_duck", proxy.TierBasic),
		entry("duck-2", "sitting_duck", proxy.TierBasic),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := make(chan *Result, 1)
	go func() {
		res, err := b.Run(context.Background())
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		done <- res
	}()
	return b, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func awaitResult(t *testing.T, done <-chan *Result) *Result {
	t.Helper()
	select {
	case res := <-done:
		if res == nil {
			t.Fatalf("Run returned no result")
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
	}
	return nil
}

func TestPauseResumeStop(t *testing.T) {
	b, done := duelRun(t)

	waitFor(t, func() bool { return b.Tick() >= 5 })
	b.Pause()
	if !b.Paused() {
		t.Fatalf("expected paused")
	}
	time.Sleep(20 * time.Millisecond)
	held := b.Tick()
	time.Sleep(50 * time.Millisecond)
	if got := b.Tick(); got != held {
		t.Fatalf("tick advanced while paused: %d -> %d", held, got)
	}

	b.Resume()
	waitFor(t, func() bool { return b.Tick() > held })
	b.Stop(true)

	res := awaitResult(t, done)
	if !res.Aborted || len(res.Winners) != 0 {
		t.Fatalf("result = %+v", res)
	}
	for _, a := range res.Agents {
		if a.Outcome != "forced_stop" || a.Reason != "battle aborted" || a.Misbehaved {
			t.Fatalf("%s = %+v", a.ID, a)
		}
	}
	if b.Result() != res {
		t.Fatalf("Result() does not match Run result")
	}
	if !b.State().Snapshot().Finished {
		t.Fatalf("final snapshot not marked finished")
	}
	if _, err := b.Run(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("second Run err = %v, want ErrAlreadyRunning", err)
	}
}

func TestGracefulStopEndsPausedBattle(t *testing.T) {
	b, done := duelRun(t)

	waitFor(t, func() bool { return b.Tick() >= 3 })
	b.Pause()
	b.Stop(false)

	res := awaitResult(t, done)
	if res.Aborted || len(res.Winners) != 0 {
		t.Fatalf("result = %+v", res)
	}
	for _, a := range res.Agents {
		if a.Outcome != "forced_stop" || a.Reason != "battle stopped" || a.Misbehaved || !a.Survived {
			t.Fatalf("%s = %+v", a.ID, a)
		}
	}
	if !b.State().Snapshot().Finished {
		t.Fatalf("final snapshot not marked finished")
	}
}

func TestKillAgentAtTickBoundary(t *testing.T) {
	b, done := duelRun(t)

	if err := b.KillAgent("ghost"); !errors.Is(err, state.ErrAgentNotFound) {
		t.Fatalf("KillAgent(ghost) err = %v, want ErrAgentNotFound", err)
	}
	waitFor(t, func() bool { return b.Tick() >= 3 })
	if err := b.KillAgent("duck-1"); err != nil {
		t.Fatalf("KillAgent: %v", err)
	}

	res := awaitResult(t, done)
	if res.Aborted || len(res.Winners) != 1 || res.Winners[0] != "duck-2" {
		t.Fatalf("result = %+v", res)
	}
	killed := mustAgent(t, res, "duck-1")
	if killed.Outcome != "forced_stop" || killed.Reason != "killed by operator" || killed.Survived || killed.Misbehaved {
		t.Fatalf("duck-1 = %+v", killed)
	}
	if got := mustAgent(t, res, "duck-2").Outcome; got != "win" {
		t.Fatalf("duck-2 outcome = %s, want win", got)
	}
}

func TestTickPhasesAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	opts := testOptions(newRegistry(nil))
	opts.MaxTicks = 3
	runBattle(t, opts, newRoster(t,
		entry("duck-1", "sitting_duck", proxy.TierBasic),
		entry("duck-2", "sitting_duck", proxy.TierBasic),
	))

	counts := make(map[string]int)
	for _, span := range recorder.Ended() {
		counts[span.Name()]++
		if span.Name() != "battle.tick" {
			continue
		}
		var hasTick, hasAlive bool
		for _, kv := range span.Attributes() {
			switch kv.Key {
			case observability.AttrTick:
				hasTick = kv.Value.AsInt64() > 0
			case observability.AttrAlive:
				hasAlive = kv.Value.AsInt64() == 2
			}
		}
		if !hasTick || !hasAlive {
			t.Fatalf("tick span attributes = %v", span.Attributes())
		}
	}
	want := map[string]int{
		"battle.run":          1,
		"battle.tick":         3,
		"battle.tick.sync":    3,
		"battle.tick.physics": 3,
		"battle.tick.publish": 3,
	}
	for name, n := range want {
		if counts[name] != n {
			t.Fatalf("%s spans = %d, want %d (all: %v)", name, counts[name], n, counts)
		}
	}
}

// herald broadcasts one message and then idles.
type herald struct{}

func (herald) Run(_ context.Context, r proxy.BasicRobot) error {
	team, ok := r.(proxy.TeamRobot)
	if !ok {
		return proxy.ErrDisabled
	}
	if err := team.BroadcastMessage([]byte("hello")); err != nil {
		return err
	}
	for {
		if err := r.DoNothing(); err != nil {
			return err
		}
	}
}

// listener records every message event it is handed.
type listener struct {
	mu   sync.Mutex
	got  []model.Event
	seen []int64
	r    proxy.BasicRobot
}

func (l *listener) OnEvent(ev model.Event) {
	if ev.Kind != model.EventMessage {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, ev)
	l.seen = append(l.seen, l.r.Time())
}

func (l *listener) Run(_ context.Context, r proxy.BasicRobot) error {
	l.mu.Lock()
	l.r = r
	l.mu.Unlock()
	for {
		if err := r.DoNothing(); err != nil {
			return err
		}
	}
}

func TestTeamMessagesArriveNextTick(t *testing.T) {
	l := &listener{}
	reg := newRegistry(map[string]host.Factory{
		"herald":   func(host.Env) (host.Agent, error) { return herald{}, nil },
		"listener": func(host.Env) (host.Agent, error) { return l, nil },
	})
	opts := testOptions(reg)
	opts.MaxTicks = 5

	h := entry("herald", "herald", proxy.TierTeam)
	h.Team, h.Leader = "blue", true
	ls := entry("listener", "listener", proxy.TierTeam)
	ls.Team = "blue"
	runBattle(t, opts, newRoster(t, h, ls, entry("duck", "sitting_duck", proxy.TierBasic)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.got) != 1 {
		t.Fatalf("messages = %+v, want exactly one", l.got)
	}
	msg := l.got[0]
	if msg.Other != "herald" || string(msg.Payload) != "hello" || msg.Tick != 1 {
		t.Fatalf("message = %+v", msg)
	}
	if l.seen[0] != 1 {
		t.Fatalf("delivered while the listener saw tick %d, want 1", l.seen[0])
	}
}

func TestLastTeamStandingWins(t *testing.T) {
	opts := testOptions(newRegistry(nil))
	a := entry("red-1", "sitting_duck", proxy.TierTeam)
	a.Team = "red"
	b := entry("red-2", "sitting_duck", proxy.TierTeam)
	b.Team = "red"
	res := runBattle(t, opts, newRoster(t, a, b))

	if res.Ticks != 1 {
		t.Fatalf("ticks = %d, want 1", res.Ticks)
	}
	if len(res.Winners) != 2 {
		t.Fatalf("winners = %v, want both red members", res.Winners)
	}
	for _, ar := range res.Agents {
		if ar.Outcome != "win" {
			t.Fatalf("%s outcome = %s, want win", ar.ID, ar.Outcome)
		}
	}
}

func TestTrackerMemorySurvivesBattles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		opts := testOptions(newRegistry(nil))
		opts.DataDir = dir
		opts.MaxTicks = 50
		res := runBattle(t, opts, newRoster(t,
			entry("tracker", "tracker", proxy.TierAdvanced),
			entry("panicker", "panicker", proxy.TierBasic),
		))
		if got := mustAgent(t, res, "tracker").Outcome; got != "win" {
			t.Fatalf("battle %d: tracker outcome = %s, want win", i, got)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "tracker", "tracker.json"))
	if err != nil {
		t.Fatalf("read memory: %v", err)
	}
	var mem struct {
		Battles int `json:"battles"`
	}
	if err := json.Unmarshal(data, &mem); err != nil {
		t.Fatalf("decode memory: %v", err)
	}
	if mem.Battles != 2 {
		t.Fatalf("battles = %d, want 2", mem.Battles)
	}
}

func TestPlacementIsSeededAndDisjoint(t *testing.T) {
	engine := core.NewEngine(core.Arena{Width: 400, Height: 400}, core.DefaultRules())
	var ps []roster.Participant
	for i := 0; i < 12; i++ {
		ps = append(ps, entry(string(rune('a'+i)), "sitting_duck", proxy.TierBasic))
	}
	ps[3] = pinned(ps[3], 50, 60, 1)

	first, err := place(engine, ps, 7)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	second, err := place(engine, ps, 7)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different layouts")
	}
	if first[3] != (start{x: 50, y: 60, heading: 1}) {
		t.Fatalf("pinned start = %+v", first[3])
	}

	size := engine.Rules().CollisionBoxSize
	for i, a := range first {
		if a.x < size/2 || a.x > 400-size/2 || a.y < size/2 || a.y > 400-size/2 {
			t.Fatalf("start %d out of bounds: %+v", i, a)
		}
		for j := 0; j < i; j++ {
			if model.RectAround(a.x, a.y, size).Intersects(model.RectAround(first[j].x, first[j].y, size)) {
				t.Fatalf("starts %d and %d overlap", j, i)
			}
		}
	}

	if _, err := place(core.NewEngine(core.Arena{Width: 40, Height: 40}, core.DefaultRules()), ps, 7); err == nil {
		t.Fatalf("expected an error when the arena is too small")
	}
}
