package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/observability"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
)

const killReason = "killed by operator"

// step runs one tick. It reports whether the battle continues.
//
// Events produced by tick N are delivered with the wake of tick N+1, and
// commands committed after an agent synchronized for tick N are applied
// no earlier than tick N+1.
func (b *Battle) step(ctx context.Context, tick int64) bool {
	if b.aborted.Load() || b.stopping.Load() || ctx.Err() != nil {
		return false
	}
	began := time.Now()
	ctx, span := observability.StartTickSpan(ctx, b.opts.ID, tick)
	defer span.End()

	b.applyKills(ctx, tick)

	var early []model.Event
	syncCtx, syncSpan := observability.StartPhaseSpan(ctx, observability.PhaseSync, tick)
	skipped := b.wakeAndWait(syncCtx, tick, began, &early)
	early = append(early, b.retireTerminated(syncCtx, tick)...)
	syncSpan.SetAttributes(observability.AttrSkipped.Int(skipped))
	syncSpan.End()

	_, physicsSpan := observability.StartPhaseSpan(ctx, observability.PhasePhysics, tick)
	bodies := make([]*core.Body, len(b.entrants))
	for i, e := range b.entrants {
		bodies[i] = e.body
		if cmds, ok := e.acc.TakeCommitted(); ok {
			b.engine.Apply(e.body, cmds)
		}
	}
	events := b.engine.Step(tick, bodies)
	for _, e := range b.entrants {
		e.acc.Publish(e.body.Status, e.body.Commands)
	}
	physicsSpan.End()

	pubCtx, pubSpan := observability.StartPhaseSpan(ctx, observability.PhasePublish, tick)
	events = append(early, events...)
	events = append(events, b.deliverMessages(tick)...)

	for _, ev := range events {
		if e, ok := b.byID[ev.Agent]; ok {
			e.pending = append(e.pending, ev)
		}
	}
	b.notifyDeaths()
	b.scorer.Observe(events)

	b.mu.Lock()
	b.tick = tick
	b.mu.Unlock()
	b.publish(pubCtx, tick, events, false)
	pubSpan.End()
	b.opts.Metrics.ObserveTick(time.Since(began))

	span.SetAttributes(observability.AttrAlive.Int(len(b.alive())))
	return !b.decided()
}

// applyKills carries out the kill requests queued since the last tick.
// The deaths are reported by this tick's physics step.
func (b *Battle) applyKills(ctx context.Context, tick int64) {
	for _, id := range b.takeKills() {
		e := b.byID[id]
		if !e.body.Alive() {
			continue
		}
		exited := e.host.ForceStop(killReason)
		e.body.Kill()
		b.log.Info(ctx, "agent killed by operator",
			logging.String("agent", e.participant.Name),
			logging.Int64("tick", tick),
			logging.Bool("exited", exited),
		)
	}
}

// wakeAndWait releases every live agent and waits, against one shared
// deadline, for each of them to synchronize. It returns how many agents
// missed the deadline.
func (b *Battle) wakeAndWait(ctx context.Context, tick int64, began time.Time, events *[]model.Event) int {
	timeout := b.opts.TurnTimeout
	if tick == 1 {
		timeout = b.opts.StartupTimeout
	}
	woken := make([]*entrant, 0, len(b.entrants))
	for _, e := range b.entrants {
		if !e.body.Alive() || e.host.State().Terminal() {
			continue
		}
		events := e.pending
		e.pending = nil
		if e.host.Wake(events, nil) {
			woken = append(woken, e)
		}
	}

	deadline := began.Add(timeout)
	skipped := 0
	for _, e := range woken {
		switch e.host.WaitSync(time.Until(deadline)) {
		case host.Synced:
			e.skippedInRow = 0
		case host.TimedOut:
			skipped++
			*events = append(*events, b.skipTurn(ctx, tick, e)...)
		case host.Exited:
		}
	}
	return skipped
}

// skipTurn records a missed synchronization. The agent keeps running
// while it has grace left; past that it is forcibly stopped. Only a
// repeated miss counts as misbehavior: a single timeout stops the agent
// without costing it its score.
func (b *Battle) skipTurn(ctx context.Context, tick int64, e *entrant) []model.Event {
	e.skippedInRow++
	e.body.Status.SkippedTurns++
	b.opts.Metrics.IncSkippedTurns()
	b.log.Debug(ctx, "agent skipped turn",
		logging.String("agent", e.participant.Name),
		logging.Int64("tick", tick),
		logging.Int("in_a_row", e.skippedInRow),
	)
	events := []model.Event{{Tick: tick, Kind: model.EventSkippedTurn, Agent: e.participant.ID}}
	if e.skippedInRow <= b.opts.SkipGraceTurns {
		return events
	}
	reason := fmt.Sprintf("skipped %d turns in a row", e.skippedInRow)
	repeated := e.skippedInRow > 1
	b.opts.Metrics.IncForcedStops()
	exited := e.host.ForceStop(reason)
	e.body.Kill()
	b.log.Warn(ctx, "agent forcibly stopped",
		logging.String("agent", e.participant.Name),
		logging.Bool("exited", exited),
		logging.Bool("misbehaved", repeated),
	)
	if repeated {
		e.misbehaved = true
		events = append(events, model.Event{Tick: tick, Kind: model.EventDisabled, Agent: e.participant.ID, Reason: reason})
	}
	return events
}

// retireTerminated removes agents whose run has ended from the arena and
// reports the ones that broke the rules.
func (b *Battle) retireTerminated(ctx context.Context, tick int64) []model.Event {
	var events []model.Event
	for _, e := range b.entrants {
		if !e.body.Alive() || !e.host.State().Terminal() {
			continue
		}
		out := e.host.Outcome()
		if out.Misbehaved() {
			e.misbehaved = true
			events = append(events, model.Event{Tick: tick, Kind: model.EventDisabled, Agent: e.participant.ID, Reason: out.Reason})
		}
		e.body.Kill()
		b.log.Info(ctx, "agent left the battle",
			logging.String("agent", e.participant.Name),
			logging.String("outcome", out.String()),
		)
	}
	return events
}

// deliverMessages moves team messages posted during this tick into events
// for their recipients.
func (b *Battle) deliverMessages(tick int64) []model.Event {
	rank := func(id model.AgentID) int { return b.rank[id] }
	var out []model.Event
	for _, e := range b.entrants {
		e.mailbox.Flip(rank)
		msgs := e.mailbox.Drain()
		if !e.body.Alive() {
			continue
		}
		for _, msg := range msgs {
			out = append(out, model.Event{
				Tick:    tick,
				Kind:    model.EventMessage,
				Agent:   msg.To,
				Other:   msg.From,
				Payload: msg.Payload,
			})
		}
	}
	return out
}

// notifyDeaths wakes every agent that died this tick one last time, with
// its pending events and the death signal.
func (b *Battle) notifyDeaths() {
	for _, e := range b.entrants {
		if e.body.Alive() || e.deathNotified {
			continue
		}
		e.deathNotified = true
		if !e.host.State().Terminal() {
			e.host.Wake(e.pending, proxy.ErrDeath)
		}
		e.pending = nil
	}
}

func (b *Battle) alive() []*entrant {
	var out []*entrant
	for _, e := range b.entrants {
		if e.body.Alive() {
			out = append(out, e)
		}
	}
	return out
}

// decided reports whether at most one side is left standing.
func (b *Battle) decided() bool {
	alive := b.alive()
	if len(alive) <= 1 {
		return true
	}
	team := alive[0].participant.Team
	if team == "" {
		return false
	}
	for _, e := range alive[1:] {
		if e.participant.Team != team {
			return false
		}
	}
	return true
}

func (b *Battle) publish(ctx context.Context, tick int64, events []model.Event, finished bool) {
	b.state.Publish(ctx, tick, b.engine.Bullets(), events, b.clock.Paused(), finished)
}

// finish ends every agent, scores the battle and publishes the final
// snapshot.
func (b *Battle) finish(ctx context.Context, elapsed time.Duration) *Result {
	tick := b.Tick()
	aborted := b.aborted.Load()
	decided := !aborted && b.decided()

	var final []model.Event
	var winners []model.AgentID
	misbehaved := make(map[model.AgentID]bool)
	agents := make([]AgentResult, 0, len(b.entrants))

	for _, e := range b.entrants {
		var out host.Outcome
		switch {
		case e.host.State().Terminal():
			out = e.host.Outcome()
		case aborted:
			out = e.host.ForceStopOutcome("battle aborted")
		case e.body.Alive() && decided:
			win := model.Event{Tick: tick, Kind: model.EventWin, Agent: e.participant.ID}
			final = append(final, win)
			winners = append(winners, e.participant.ID)
			out = e.host.End(append(e.pending, win), proxy.ErrWin)
		case e.body.Alive() && b.stopping.Load():
			out = e.host.ForceStopOutcome("battle stopped")
		case e.body.Alive():
			out = e.host.ForceStopOutcome("tick limit reached")
		default:
			out = e.host.End(e.pending, proxy.ErrDeath)
		}
		e.pending = nil
		if out.Kind == host.OutcomeDisabled {
			e.misbehaved = true
		}
		misbehaved[e.participant.ID] = e.misbehaved
		b.opts.Metrics.RecordOutcome(out.Kind.String())

		status := e.acc.Status()
		agents = append(agents, AgentResult{
			ID:           e.participant.ID,
			Name:         e.participant.Name,
			Team:         e.participant.Team,
			Outcome:      out.Kind.String(),
			Reason:       out.Reason,
			Survived:     e.body.Alive(),
			Misbehaved:   e.misbehaved,
			SkippedTurns: status.SkippedTurns,
			Energy:       status.Energy,
		})
	}

	for _, e := range b.entrants {
		e.host.Cleanup()
	}

	res := &Result{
		BattleID: b.opts.ID,
		Ticks:    tick,
		Duration: elapsed,
		Aborted:  aborted,
		Winners:  winners,
		Agents:   agents,
		Scores:   b.scorer.Finish(misbehaved),
	}
	b.mu.Lock()
	b.result = res
	b.mu.Unlock()

	b.publish(ctx, tick, final, true)
	b.log.Info(ctx, "battle finished",
		logging.Int64("ticks", tick),
		logging.Bool("aborted", aborted),
		logging.Int("winners", len(winners)),
		logging.Duration("elapsed", elapsed),
	)
	return res
}
