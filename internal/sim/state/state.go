package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/model"
)

var (
	// ErrAgentExists indicates an agent with the same ID was already added.
	ErrAgentExists = errors.New("agent already exists")
	// ErrAgentNotFound indicates a requested agent is not part of the battle.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrTeamNotFound indicates a requested team is not part of the battle.
	ErrTeamNotFound = errors.New("team not found")
)

// Snapshot is the immutable view of a battle published once per tick.
// Callers must treat every slice as read-only.
type Snapshot struct {
	BattleID string
	Tick     int64
	Agents   []model.AgentStatus
	Bullets  []model.BulletStatus
	Events   []model.Event
	Paused   bool
	Finished bool
}

// Agent returns the status of id in the snapshot.
func (s *Snapshot) Agent(id model.AgentID) (model.AgentStatus, bool) {
	if s == nil {
		return model.AgentStatus{}, false
	}
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return model.AgentStatus{}, false
}

// Alive counts the agents still in the battle.
func (s *Snapshot) Alive() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, a := range s.Agents {
		if a.Alive() {
			n++
		}
	}
	return n
}

// BattleMetricsRecorder receives the alive count after each publication.
type BattleMetricsRecorder interface {
	SetAgentsAlive(n int)
}

// BattleStateOption customises BattleState construction.
type BattleStateOption func(*BattleState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m BattleMetricsRecorder) BattleStateOption {
	return func(s *BattleState) {
		s.metrics = m
	}
}

// BattleState holds the accessors of every agent in a battle, in stable
// placement order, and publishes per-tick snapshots to observers.
type BattleState struct {
	id string

	mu        sync.RWMutex
	order     []model.AgentID
	accessors map[model.AgentID]*Accessor
	teams     map[string]model.TeamRecord

	snapshot atomic.Pointer[Snapshot]

	subsMu  sync.Mutex
	subs    map[int]func(*Snapshot)
	nextSub int

	log     logging.Logger
	metrics BattleMetricsRecorder
}

// NewBattleState returns an empty state for the battle id.
func NewBattleState(battleID string, log logging.Logger, opts ...BattleStateOption) *BattleState {
	if log == nil {
		log = logging.Noop()
	}
	s := &BattleState{
		id:        battleID,
		accessors: make(map[model.AgentID]*Accessor),
		teams:     make(map[string]model.TeamRecord),
		subs:      make(map[int]func(*Snapshot)),
		log:       log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.snapshot.Store(&Snapshot{BattleID: battleID})
	return s
}

// BattleID returns the identifier of the battle.
func (s *BattleState) BattleID() string { return s.id }

// AddAgent registers an agent and returns its accessor.
func (s *BattleState) AddAgent(status model.AgentStatus, cmds model.AgentCommands) (*Accessor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accessors[status.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentExists, status.ID)
	}
	a := NewAccessor(status, cmds)
	s.accessors[status.ID] = a
	s.order = append(s.order, status.ID)
	return a, nil
}

// Accessor returns the accessor of id.
func (s *BattleState) Accessor(id model.AgentID) (*Accessor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accessors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a, nil
}

// AgentIDs returns agent IDs in placement order.
func (s *BattleState) AgentIDs() []model.AgentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AgentID(nil), s.order...)
}

// SetTeam records or replaces a team.
func (s *BattleState) SetTeam(team model.TeamRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team.Members = append([]model.AgentID(nil), team.Members...)
	s.teams[team.Name] = team
}

// Team returns the named team.
func (s *BattleState) Team(name string) (model.TeamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[name]
	if !ok {
		return model.TeamRecord{}, fmt.Errorf("%w: %s", ErrTeamNotFound, name)
	}
	return t, nil
}

// Publish builds a snapshot from the current accessor contents, stores it
// as the latest view and hands it to every subscriber.
func (s *BattleState) Publish(ctx context.Context, tick int64, bullets []model.BulletStatus, events []model.Event, paused, finished bool) *Snapshot {
	s.mu.RLock()
	agents := make([]model.AgentStatus, 0, len(s.order))
	for _, id := range s.order {
		agents = append(agents, s.accessors[id].Status())
	}
	s.mu.RUnlock()

	snap := &Snapshot{
		BattleID: s.id,
		Tick:     tick,
		Agents:   agents,
		Bullets:  append([]model.BulletStatus(nil), bullets...),
		Events:   append([]model.Event(nil), events...),
		Paused:   paused,
		Finished: finished,
	}
	s.snapshot.Store(snap)

	if s.metrics != nil {
		s.metrics.SetAgentsAlive(snap.Alive())
	}

	s.subsMu.Lock()
	subs := make([]func(*Snapshot), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.subsMu.Unlock()

	// Subscribers run outside the lock so they may unsubscribe themselves.
	for _, fn := range subs {
		fn(snap)
	}
	if finished {
		s.log.Debug(ctx, "final snapshot published", logging.Int64("tick", tick))
	}
	return snap
}

// Snapshot returns the latest published view without blocking the tick loop.
func (s *BattleState) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Subscribe registers fn for every published snapshot, in subscription
// order. It returns an unsubscribe function that is safe to call twice.
func (s *BattleState) Subscribe(fn func(*Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}
