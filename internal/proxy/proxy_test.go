package proxy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

// simBinding steps a one-body engine every time the agent synchronizes.
type simBinding struct {
	engine *core.Engine
	body   *core.Body
	acc    *state.Accessor
	tick   int64

	inject   []model.Event
	err      error
	stopping bool
	disabled string
	syncs    int
}

func (s *simBinding) Sync() ([]model.Event, error) {
	s.syncs++
	if cmds, ok := s.acc.TakeCommitted(); ok {
		s.engine.Apply(s.body, cmds)
	}
	s.tick++
	var out []model.Event
	for _, ev := range s.engine.Step(s.tick, []*core.Body{s.body}) {
		if ev.Agent == s.body.Status.ID {
			out = append(out, ev)
		}
	}
	s.acc.Publish(s.body.Status, s.body.Commands)
	out = append(out, s.inject...)
	s.inject = nil
	return out, s.err
}

func (s *simBinding) Stopping() bool        { return s.stopping }
func (s *simBinding) Disable(reason string) { s.disabled = reason }

func newRig(t *testing.T, tier Tier, tweak func(*ChainOptions)) (*Chain, *simBinding) {
	t.Helper()
	rules := core.DefaultRules()
	arena := core.Arena{Width: 800, Height: 600}
	engine := core.NewEngine(arena, rules)
	body := engine.NewBody("a", "alpha", "", 400, 300, 0, false, false)
	acc := state.NewAccessor(body.Status, body.Commands)
	sim := &simBinding{engine: engine, body: body, acc: acc}
	opts := ChainOptions{
		Config: Config{Name: "alpha", Rules: rules, Arena: arena},
		Tier:   tier,
		Self:   "a",
	}
	if tweak != nil {
		tweak(&opts)
	}
	return NewChain(opts, acc, sim), sim
}

// runAgent runs fn on its own goroutine and reports whether fn returned
// normally, as opposed to being terminated inside the chain.
func runAgent(t *testing.T, fn func()) bool {
	t.Helper()
	done := make(chan struct{})
	returned := false
	go func() {
		defer close(done)
		fn()
		returned = true
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("agent goroutine did not finish")
	}
	return returned
}

type recorder struct{ kinds []model.EventKind }

func (r *recorder) OnEvent(ev model.Event) { r.kinds = append(r.kinds, ev.Kind) }

func TestTierSurfaces(t *testing.T) {
	tests := []struct {
		tier                     Tier
		standard, advanced, team bool
	}{
		{TierBasic, false, false, false},
		{TierStandard, true, false, false},
		{TierAdvanced, true, true, false},
		{TierTeam, true, true, true},
	}
	for _, tt := range tests {
		chain, _ := newRig(t, tt.tier, nil)
		r := chain.Robot()
		_, std := r.(StandardRobot)
		_, adv := r.(AdvancedRobot)
		_, team := r.(TeamRobot)
		if std != tt.standard || adv != tt.advanced || team != tt.team {
			t.Fatalf("%s: standard=%v advanced=%v team=%v", tt.tier, std, adv, team)
		}
	}
}

func TestParseTier(t *testing.T) {
	if got, err := ParseTier("Advanced"); err != nil || got != TierAdvanced {
		t.Fatalf("ParseTier = %v, %v", got, err)
	}
	if _, err := ParseTier("wizard"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestMoveBlocksUntilArrival(t *testing.T) {
	chain, sim := newRig(t, TierBasic, nil)
	r := chain.Robot()
	if err := r.Move(100); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if math.Abs(r.Y()-400) > 1e-9 || r.X() != 400 {
		t.Fatalf("position = (%v, %v), want (400, 400)", r.X(), r.Y())
	}
	if r.DistanceRemaining() != 0 {
		t.Fatalf("distance remaining = %v", r.DistanceRemaining())
	}
	if sim.syncs < 2 {
		t.Fatalf("move finished in %d ticks", sim.syncs)
	}
}

func TestTurnBlocksUntilDone(t *testing.T) {
	chain, _ := newRig(t, TierBasic, nil)
	r := chain.Robot()
	if err := r.Turn(core.Radians(35)); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if math.Abs(r.Heading()-core.Radians(35)) > 1e-9 {
		t.Fatalf("heading = %v", core.Degrees(r.Heading()))
	}
}

func TestSettersStageUntilExecute(t *testing.T) {
	chain, sim := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)

	r.SetMove(50)
	if got := r.DistanceRemaining(); got != 50 {
		t.Fatalf("staged distance = %v", got)
	}
	if _, ok := sim.acc.TakeCommitted(); ok {
		t.Fatalf("setter committed before Execute")
	}
	if r.Y() != 300 {
		t.Fatalf("body moved before Execute")
	}

	if err := r.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.Y() <= 300 {
		t.Fatalf("body did not move after Execute")
	}
	if got := r.DistanceRemaining(); got >= 50 || got <= 0 {
		t.Fatalf("distance remaining after one tick = %v", got)
	}
}

func TestCapsTightenOnly(t *testing.T) {
	chain, _ := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	r.SetMaxVelocity(20)
	r.SetMove(500)
	for i := 0; i < 20; i++ {
		if err := r.Execute(); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if r.Velocity() > 8 {
			t.Fatalf("velocity %v exceeds the rule limit", r.Velocity())
		}
	}
	r.SetMaxVelocity(-3)
	for i := 0; i < 5; i++ {
		_ = r.Execute()
	}
	if r.Velocity() > 3 {
		t.Fatalf("velocity %v exceeds agent cap 3", r.Velocity())
	}
}

func TestStopSavesAndResumeRestores(t *testing.T) {
	chain, _ := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	r.SetMove(200)
	for i := 0; i < 3; i++ {
		if err := r.Execute(); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.Velocity() != 0 || r.DistanceRemaining() != 0 {
		t.Fatalf("after Stop velocity=%v distance=%v", r.Velocity(), r.DistanceRemaining())
	}
	stoppedAt := r.Y()
	if err := r.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if r.DistanceRemaining() <= 0 || r.Y() <= stoppedAt {
		t.Fatalf("Resume did not restore motion: distance=%v y=%v", r.DistanceRemaining(), r.Y())
	}
}

func TestFireNeedsColdGun(t *testing.T) {
	chain, _ := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	fired, err := r.Fire(3)
	if err != nil || fired {
		t.Fatalf("Fire with hot gun = %v, %v", fired, err)
	}
	if err := r.WaitFor(func() bool { return r.GunHeat() == 0 }); err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	fired, err = r.Fire(3)
	if err != nil || !fired {
		t.Fatalf("Fire with cold gun = %v, %v", fired, err)
	}
	if math.Abs(r.Energy()-97) > 1e-9 {
		t.Fatalf("energy after firing = %v", r.Energy())
	}
}

func TestGetBudgetDisables(t *testing.T) {
	chain, sim := newRig(t, TierBasic, func(o *ChainOptions) { o.MaxGetCalls = 5 })
	r := chain.Robot()
	returned := runAgent(t, func() {
		for i := 0; i < 10; i++ {
			r.X()
		}
	})
	if returned {
		t.Fatalf("agent survived exceeding its get budget")
	}
	if sim.disabled == "" {
		t.Fatalf("agent was not disabled")
	}
}

func TestBudgetResetsOnSync(t *testing.T) {
	chain, sim := newRig(t, TierBasic, func(o *ChainOptions) { o.MaxGetCalls = 5 })
	r := chain.Robot()
	returned := runAgent(t, func() {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				r.Energy()
			}
			if err := r.DoNothing(); err != nil {
				t.Errorf("DoNothing: %v", err)
			}
		}
	})
	if !returned || sim.disabled != "" {
		t.Fatalf("agent within budget was terminated: %q", sim.disabled)
	}
}

func TestStoppingTerminatesAtNextCall(t *testing.T) {
	chain, sim := newRig(t, TierBasic, nil)
	r := chain.Robot()
	sim.stopping = true
	reached := false
	returned := runAgent(t, func() {
		r.Energy()
		reached = true
	})
	if returned || reached {
		t.Fatalf("agent kept running after cancellation")
	}
	if sim.disabled != "" {
		t.Fatalf("cancellation should not disable: %q", sim.disabled)
	}
}

func TestBlockingCallAfterDeathDisables(t *testing.T) {
	chain, sim := newRig(t, TierBasic, nil)
	r := chain.Robot()
	sim.err = ErrDeath
	var first error
	returned := runAgent(t, func() {
		first = r.DoNothing()
		_ = r.DoNothing()
	})
	if !errors.Is(first, ErrDeath) {
		t.Fatalf("first call = %v, want ErrDeath", first)
	}
	if returned {
		t.Fatalf("second blocking call returned")
	}
	if sim.disabled == "" {
		t.Fatalf("agent not disabled after blocking call past death")
	}
}

func TestWinEndsQuietly(t *testing.T) {
	chain, sim := newRig(t, TierBasic, nil)
	r := chain.Robot()
	sim.err = ErrWin
	var first error
	returned := runAgent(t, func() {
		first = r.DoNothing()
		_ = r.DoNothing()
	})
	if !errors.Is(first, ErrWin) || returned || sim.disabled != "" {
		t.Fatalf("first=%v returned=%v disabled=%q", first, returned, sim.disabled)
	}
}

func TestDetachTerminatesCaller(t *testing.T) {
	chain, sim := newRig(t, TierTeam, nil)
	r := chain.Robot()
	chain.Detach()
	returned := runAgent(t, func() { _ = r.DoNothing() })
	if returned || sim.syncs != 0 {
		t.Fatalf("detached chain still reached the host")
	}
}

func TestEventPriorityOrder(t *testing.T) {
	chain, sim := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	rec := &recorder{}
	chain.SetHandler(rec)

	sim.inject = []model.Event{
		{Kind: model.EventScanned, Agent: "a"},
		{Kind: model.EventHitByBullet, Agent: "a"},
		{Kind: model.EventRobotDeath, Agent: "a"},
	}
	if err := r.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []model.EventKind{model.EventRobotDeath, model.EventHitByBullet, model.EventScanned}
	if !equalKinds(rec.kinds, want) {
		t.Fatalf("delivery order = %v, want %v", rec.kinds, want)
	}

	if err := r.SetEventPriority(model.EventScanned, 99); err != nil {
		t.Fatalf("SetEventPriority: %v", err)
	}
	if got := r.EventPriority(model.EventScanned); got != 99 {
		t.Fatalf("EventPriority = %d", got)
	}
	rec.kinds = nil
	sim.inject = []model.Event{
		{Kind: model.EventHitByBullet, Agent: "a"},
		{Kind: model.EventScanned, Agent: "a"},
	}
	_ = r.Execute()
	want = []model.EventKind{model.EventScanned, model.EventHitByBullet}
	if !equalKinds(rec.kinds, want) {
		t.Fatalf("delivery order = %v, want %v", rec.kinds, want)
	}
}

func TestSetEventPriorityRejects(t *testing.T) {
	chain, _ := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	tests := []struct {
		kind     model.EventKind
		priority int
	}{
		{model.EventWin, 10},
		{model.EventDeath, 10},
		{model.EventSkippedTurn, 10},
		{model.EventScanned, -1},
		{model.EventScanned, 100},
	}
	for _, tt := range tests {
		if err := r.SetEventPriority(tt.kind, tt.priority); !errors.Is(err, ErrInvalidPriority) {
			t.Fatalf("SetEventPriority(%s, %d) = %v", tt.kind, tt.priority, err)
		}
	}
}

type customHandler struct {
	names []string
}

func (h *customHandler) OnEvent(ev model.Event) {
	if ev.Kind == model.EventCustom {
		h.names = append(h.names, ev.Name)
	}
}

func TestCustomEventFires(t *testing.T) {
	chain, _ := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	h := &customHandler{}
	chain.SetHandler(h)

	if err := r.AddCustomEvent("north", func() bool { return r.Y() > 310 }); err != nil {
		t.Fatalf("AddCustomEvent: %v", err)
	}
	if err := r.AddCustomEvent("north", func() bool { return true }); !errors.Is(err, ErrDuplicateCondition) {
		t.Fatalf("duplicate condition = %v", err)
	}
	r.SetMove(100)
	for i := 0; i < 8; i++ {
		_ = r.Execute()
	}
	if len(h.names) == 0 {
		t.Fatalf("custom event never fired")
	}
	fired := len(h.names)
	r.RemoveCustomEvent("north")
	_ = r.Execute()
	if len(h.names) != fired {
		t.Fatalf("removed condition still fired")
	}
}

type nestedHandler struct {
	r     AdvancedRobot
	seen  []model.EventKind
	calls int
}

func (h *nestedHandler) OnEvent(ev model.Event) {
	h.seen = append(h.seen, ev.Kind)
	if ev.Kind == model.EventHitByBullet && h.calls == 0 {
		h.calls++
		_ = h.r.Execute()
	}
}

func TestNestedDispatchDefersEvents(t *testing.T) {
	chain, sim := newRig(t, TierAdvanced, nil)
	r := chain.Robot().(AdvancedRobot)
	h := &nestedHandler{r: r}
	chain.SetHandler(h)

	sim.inject = []model.Event{{Kind: model.EventHitByBullet, Agent: "a"}, {Kind: model.EventScanned, Agent: "a"}}
	// The nested Execute picks up the second batch; it must not interleave
	// with the first.
	_ = r.Execute()
	if len(h.seen) != 2 || h.seen[0] != model.EventHitByBullet || h.seen[1] != model.EventScanned {
		t.Fatalf("first batch = %v", h.seen)
	}
}

func equalKinds(a, b []model.EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
