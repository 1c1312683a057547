// Package host runs untrusted agent code on its own goroutine and moves it
// through the load, run, terminate and cleanup lifecycle.
package host

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
)

// Agent is the code an arena participant runs. Run receives the capability
// surface of the agent's declared tier; agents built for a higher tier
// assert it to proxy.StandardRobot, proxy.AdvancedRobot or proxy.TeamRobot.
//
// Run may return at any time. A nil return leaves the body idle until the
// battle ends.
type Agent interface {
	Run(ctx context.Context, r proxy.BasicRobot) error
}

// Cleaner is implemented by agents that hold resources of their own.
type Cleaner interface {
	Cleanup()
}

// Env is everything an agent may learn about its surroundings when it is
// constructed. Nothing else is reachable from agent code.
type Env struct {
	ID      model.AgentID
	Name    string
	Tier    proxy.Tier
	Log     logging.Logger
	Rand    *rand.Rand
	DataDir string
}

// Factory constructs an agent.
type Factory func(env Env) (Agent, error)

// ErrUnknownAgent indicates that no factory is registered under a kind.
var ErrUnknownAgent = errors.New("unknown agent kind")

// LoadError reports that an agent could not be constructed.
type LoadError struct {
	Kind string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load agent %q: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader constructs agents by kind.
type Loader interface {
	Load(ctx context.Context, kind string, env Env) (Agent, error)
}

// Registry is a Loader backed by in-process factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds f under kind, replacing any previous factory.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load runs the factory for kind. Factory errors and panics are returned
// as *LoadError.
func (r *Registry) Load(ctx context.Context, kind string, env Env) (agent Agent, err error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Kind: kind, Err: err}
	}
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &LoadError{Kind: kind, Err: ErrUnknownAgent}
	}
	defer func() {
		if p := recover(); p != nil {
			agent, err = nil, &LoadError{Kind: kind, Err: fmt.Errorf("factory panic: %v", p)}
		}
	}()
	agent, err = f(env)
	if err != nil {
		return nil, &LoadError{Kind: kind, Err: err}
	}
	if agent == nil {
		return nil, &LoadError{Kind: kind, Err: errors.New("factory returned no agent")}
	}
	return agent, nil
}
