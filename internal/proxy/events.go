package proxy

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/robot-arena/model"
)

// Priority bounds for configurable event kinds.
const (
	MinEventPriority = 0
	MaxEventPriority = 99
)

// fixedPriority kinds always outrank everything the agent configures.
var fixedPriority = map[model.EventKind]bool{
	model.EventSkippedTurn: true,
	model.EventWin:         true,
	model.EventDeath:       true,
	model.EventDisabled:    true,
}

type condition struct {
	name string
	test func() bool
}

// eventQueue orders delivered events by priority and owns the agent's
// custom conditions. It is touched only from the agent goroutine.
type eventQueue struct {
	priorities map[model.EventKind]int
	conditions []condition
}

func newEventQueue() *eventQueue {
	q := &eventQueue{priorities: make(map[model.EventKind]int)}
	for _, k := range model.EventKinds() {
		q.priorities[k] = k.DefaultPriority()
	}
	return q
}

func (q *eventQueue) priority(kind model.EventKind) int {
	if p, ok := q.priorities[kind]; ok {
		return p
	}
	return kind.DefaultPriority()
}

func (q *eventQueue) setPriority(kind model.EventKind, p int) error {
	if fixedPriority[kind] {
		return fmt.Errorf("%w: %s has a fixed priority", ErrInvalidPriority, kind)
	}
	if p < MinEventPriority || p > MaxEventPriority {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, p)
	}
	q.priorities[kind] = p
	return nil
}

// order returns events sorted highest priority first. Ties keep arrival order.
func (q *eventQueue) order(events []model.Event) []model.Event {
	out := append([]model.Event(nil), events...)
	sort.SliceStable(out, func(i, j int) bool {
		return q.priority(out[i].Kind) > q.priority(out[j].Kind)
	})
	return out
}

func (q *eventQueue) addCondition(name string, test func() bool) error {
	for _, c := range q.conditions {
		if c.name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateCondition, name)
		}
	}
	q.conditions = append(q.conditions, condition{name: name, test: test})
	return nil
}

func (q *eventQueue) removeCondition(name string) {
	for i, c := range q.conditions {
		if c.name == name {
			q.conditions = append(q.conditions[:i], q.conditions[i+1:]...)
			return
		}
	}
}

// fireConditions evaluates every custom condition once, in registration order.
func (b *Basic) fireConditions() []model.Event {
	if len(b.queue.conditions) == 0 {
		return nil
	}
	var (
		now int64
		id  model.AgentID
	)
	_ = b.acc.WithReadLock(func(s *model.AgentStatus, _ *model.AgentCommands) error {
		now, id = s.Tick, s.ID
		return nil
	})
	var out []model.Event
	for _, c := range append([]condition(nil), b.queue.conditions...) {
		if c.test() {
			out = append(out, model.Event{Tick: now, Kind: model.EventCustom, Agent: id, Name: c.name})
		}
	}
	return out
}
