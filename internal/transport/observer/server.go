// Package observer streams published battle snapshots to WebSocket
// viewers. Observers are read-only: nothing they send reaches the battle.
package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/recording"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
)

const (
	writeWait   = 5 * time.Second
	readWait    = 60 * time.Second
	clientQueue = 64
)

// ClientGauge receives the number of connected observers.
type ClientGauge interface {
	SetObserverClients(n int)
}

type client struct {
	id  uint64
	out chan []byte
}

// Server fans snapshots out to every connected observer. A slow observer
// loses frames instead of slowing the battle.
type Server struct {
	state *state.BattleState
	log   logging.Logger
	gauge ClientGauge

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Int64

	mu      sync.Mutex
	clients map[uint64]*client
	detach  func()
}

// NewServer builds an observer server for s. gauge may be nil.
func NewServer(s *state.BattleState, log logging.Logger, gauge ClientGauge) *Server {
	if log == nil {
		log = logging.Noop()
	}
	srv := &Server{
		state: s,
		log:   log,
		gauge: gauge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uint64]*client),
	}
	srv.detach = s.Subscribe(srv.broadcast)
	return srv
}

// Dropped returns how many frames were dropped for slow observers.
func (s *Server) Dropped() int64 { return s.dropped.Load() }

// Clients returns the number of connected observers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops following the battle and disconnects every observer.
func (s *Server) Close() {
	s.detach()
	s.mu.Lock()
	for id, c := range s.clients {
		close(c.out)
		delete(s.clients, id)
	}
	s.mu.Unlock()
	s.reportClients()
}

func encode(snap *state.Snapshot) ([]byte, error) {
	return json.Marshal(recording.NewFrame(snap))
}

func (s *Server) broadcast(snap *state.Snapshot) {
	b, err := encode(snap)
	if err != nil {
		s.log.Warn(context.Background(), "observer frame encode failed", logging.Err(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) register() *client {
	c := &client{id: s.nextID.Add(1), out: make(chan []byte, clientQueue)}
	if b, err := encode(s.state.Snapshot()); err == nil {
		c.out <- b
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.reportClients()
	return c
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.out)
	}
	s.mu.Unlock()
	s.reportClients()
}

func (s *Server) reportClients() {
	if s.gauge != nil {
		s.gauge.SetObserverClients(s.Clients())
	}
}

// Handler upgrades the request and streams frames until the observer
// disconnects or the server closes.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.register()
		defer s.unregister(c)
		s.log.Debug(r.Context(), "observer connected", logging.Int64("observer", int64(c.id)))

		// The reader only notices the observer going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(readWait))
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case b, ok := <-c.out:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "battle over"),
						time.Now().Add(time.Second))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}
