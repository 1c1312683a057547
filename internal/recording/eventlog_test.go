package recording

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/model"
)

func newState(t *testing.T) *state.BattleState {
	t.Helper()
	s := state.NewBattleState("b1", logging.Noop())
	for _, id := range []model.AgentID{"a", "b"} {
		status := model.AgentStatus{ID: id, Name: string(id), X: 100, Y: 200, Energy: 100}
		if _, err := s.AddAgent(status, model.NewAgentCommands(8, 0.17)); err != nil {
			t.Fatalf("AddAgent: %v", err)
		}
	}
	return s
}

func TestEventLogRecordsPublishedFrames(t *testing.T) {
	dir := t.TempDir()
	s := newState(t)
	l, err := Create(dir, "b1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	detach := l.Attach(s)

	ctx := context.Background()
	s.Publish(ctx, 0, nil, nil, false, false)
	s.Publish(ctx, 1, []model.BulletStatus{{ID: 1, Owner: "a", X: 110, Y: 200, Power: 2}}, []model.Event{
		{Tick: 1, Kind: model.EventMessage, Agent: "b", Other: "a", Payload: []byte("secret")},
		{Tick: 1, Kind: model.EventBulletHit, Agent: "a", Other: "b", Damage: 10, BulletID: 1},
	}, false, false)
	s.Publish(ctx, 1, nil, nil, false, true)
	detach()
	s.Publish(ctx, 2, nil, nil, false, true)

	if got := l.Frames(); got != 3 {
		t.Fatalf("Frames() = %d, want 3", got)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := l.Write(Frame{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close = %v, want ErrClosed", err)
	}

	frames, err := ReadFile(Path(dir, "b1"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("read %d frames, want 3", len(frames))
	}
	f := frames[1]
	if f.BattleID != "b1" || f.Tick != 1 || len(f.Agents) != 2 || len(f.Bullets) != 1 {
		t.Fatalf("frame 1 = %+v", f)
	}
	if f.Agents[0].ID != "a" || f.Agents[0].Energy != 100 || f.Agents[0].State != model.LifecycleActive.String() {
		t.Fatalf("agent frame = %+v", f.Agents[0])
	}
	if len(f.Events) != 2 || f.Events[0].Kind != "message" || f.Events[1].Kind != "bullet_hit" || f.Events[1].Damage != 10 {
		t.Fatalf("events = %+v", f.Events)
	}
	if !frames[2].Finished {
		t.Fatalf("last frame should be finished")
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(Path(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for a missing log")
	}
}
