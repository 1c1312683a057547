package state

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/robot-arena/model"
)

// TestAccessorLockDiscipline hammers one accessor from many goroutines and
// checks that write holds never overlap each other or any read hold.
func TestAccessorLockDiscipline(t *testing.T) {
	a := NewAccessor(model.AgentStatus{ID: "a"}, model.AgentCommands{})

	var readers, writers atomic.Int32
	var violations atomic.Int32
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = a.WithWriteLock(func(s *model.AgentStatus, _ *model.AgentCommands) error {
					if writers.Add(1) != 1 || readers.Load() != 0 {
						violations.Add(1)
					}
					s.Energy++
					writers.Add(-1)
					return nil
				})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = a.WithReadLock(func(*model.AgentStatus, *model.AgentCommands) error {
					readers.Add(1)
					if writers.Load() != 0 {
						violations.Add(1)
					}
					readers.Add(-1)
					return nil
				})
			}
		}()
	}
	wg.Wait()

	if v := violations.Load(); v != 0 {
		t.Fatalf("observed %d overlapping lock holds", v)
	}
	if got := a.Status().Energy; got != 8*500 {
		t.Fatalf("energy = %v, want %v", got, 8*500)
	}
}

func TestAccessorReleasesOnPanic(t *testing.T) {
	a := NewAccessor(model.AgentStatus{ID: "a"}, model.AgentCommands{})

	func() {
		defer func() { _ = recover() }()
		_ = a.WithWriteLock(func(*model.AgentStatus, *model.AgentCommands) error {
			panic("agent bug")
		})
	}()

	done := make(chan struct{})
	go func() {
		a.Commit(model.AgentCommands{DistanceRemaining: 1})
		close(done)
	}()
	<-done
}

func TestAccessorReturnsCallbackError(t *testing.T) {
	a := NewAccessor(model.AgentStatus{}, model.AgentCommands{})
	want := errors.New("boom")
	if err := a.WithReadLock(func(*model.AgentStatus, *model.AgentCommands) error { return want }); !errors.Is(err, want) {
		t.Fatalf("WithReadLock error = %v, want %v", err, want)
	}
	if err := a.WithWriteLock(nil); err != nil {
		t.Fatalf("nil callback should be a no-op, got %v", err)
	}
}

func TestAccessorCommitIsTakenOnce(t *testing.T) {
	a := NewAccessor(model.AgentStatus{}, model.AgentCommands{MaxVelocity: 8})

	if _, ok := a.TakeCommitted(); ok {
		t.Fatalf("nothing committed yet")
	}
	a.Commit(model.AgentCommands{DistanceRemaining: 10})
	a.Commit(model.AgentCommands{DistanceRemaining: 20})

	got, ok := a.TakeCommitted()
	if !ok || got.DistanceRemaining != 20 {
		t.Fatalf("TakeCommitted = %+v, %v; want the latest commit", got, ok)
	}
	if _, ok := a.TakeCommitted(); ok {
		t.Fatalf("commit should be consumed")
	}
	if a.Resolved().MaxVelocity != 8 {
		t.Fatalf("commit must not touch the resolved buffer")
	}

	a.Publish(model.AgentStatus{Energy: 50}, model.AgentCommands{TurnRemaining: 1})
	if a.Status().Energy != 50 || a.Resolved().TurnRemaining != 1 {
		t.Fatalf("publish not visible")
	}
}

func TestPublishWaitsForReaders(t *testing.T) {
	a := NewAccessor(model.AgentStatus{ID: "a", Energy: 100}, model.AgentCommands{})

	holding := make(chan struct{})
	release := make(chan struct{})
	var seen float64
	go func() {
		_ = a.WithReadLock(func(s *model.AgentStatus, _ *model.AgentCommands) error {
			close(holding)
			<-release
			seen = s.Energy
			return nil
		})
	}()
	<-holding

	published := make(chan struct{})
	go func() {
		a.Publish(model.AgentStatus{ID: "a", Energy: 42}, model.AgentCommands{})
		close(published)
	}()
	select {
	case <-published:
		t.Fatalf("Publish completed while a read lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-published
	if seen != 100 {
		t.Fatalf("reader saw energy %v mid-publish, want 100", seen)
	}
	if got := a.Status().Energy; got != 42 {
		t.Fatalf("energy after publish = %v, want 42", got)
	}
}
