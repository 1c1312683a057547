package proxy

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/robot-arena/model"
)

// DefaultMailboxCapacity bounds the number of undelivered messages per agent.
const DefaultMailboxCapacity = 256

// Message is a payload passed between teammates.
type Message struct {
	From    model.AgentID
	To      model.AgentID
	Payload []byte
	Seq     uint64
}

// Postmaster routes team messages. The battle implements it.
type Postmaster interface {
	Post(from, to model.AgentID, payload []byte) error
}

// Mailbox is the bounded FIFO inbox of one agent. Messages posted during
// tick N become ready when the battle flips the mailbox after tick N and
// are delivered with the wake of tick N+1.
type Mailbox struct {
	capacity int

	mu      sync.Mutex
	seq     uint64
	pending []Message
	ready   []Message
	dropped int
}

// NewMailbox returns a mailbox holding at most capacity messages.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox{capacity: capacity}
}

// Put queues a message. When the mailbox is full the oldest message is
// dropped.
func (m *Mailbox) Put(from, to model.AgentID, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg := Message{From: from, To: to, Payload: append([]byte(nil), payload...), Seq: m.seq}
	if len(m.pending)+len(m.ready) >= m.capacity {
		if len(m.ready) > 0 {
			m.ready = m.ready[1:]
		} else {
			m.pending = m.pending[1:]
		}
		m.dropped++
	}
	m.pending = append(m.pending, msg)
}

// Flip makes pending messages ready. rank orders senders so delivery does
// not depend on goroutine timing: messages sort by sender rank, then by
// arrival within a sender.
func (m *Mailbox) Flip(rank func(model.AgentID) int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return
	}
	batch := m.pending
	m.pending = nil
	sort.SliceStable(batch, func(i, j int) bool {
		ri, rj := rank(batch[i].From), rank(batch[j].From)
		if ri != rj {
			return ri < rj
		}
		return batch[i].Seq < batch[j].Seq
	})
	m.ready = append(m.ready, batch...)
}

// Drain removes and returns the ready messages.
func (m *Mailbox) Drain() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.ready
	m.ready = nil
	return out
}

// Dropped returns how many messages were discarded on overflow.
func (m *Mailbox) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
