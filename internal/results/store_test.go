package results

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/robot-arena/internal/battle"
	"github.com/signalsfoundry/robot-arena/internal/stats"
)

func sampleResult(id string, winner string) *battle.Result {
	return &battle.Result{
		BattleID: id,
		Ticks:    420,
		Agents: []battle.AgentResult{
			{ID: "tracker", Name: "tracker", Outcome: outcomeFor("tracker", winner)},
			{ID: "duck", Name: "duck", Outcome: outcomeFor("duck", winner)},
		},
		Scores: []stats.Score{
			{ID: "tracker", Name: "tracker", Rank: rankFor("tracker", winner), Survival: 50, BulletDamage: 112, Kills: 1},
			{ID: "duck", Name: "duck", Rank: rankFor("duck", winner)},
		},
	}
}

func outcomeFor(name, winner string) string {
	if name == winner {
		return "win"
	}
	return "death"
}

func rankFor(name, winner string) int {
	if name == winner {
		return 1
	}
	return 2
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	res := sampleResult("b1", "tracker")
	res.Winners = append(res.Winners, "tracker")
	if err := s.Record(ctx, "duel", 7, res, "/tmp/b1.jsonl.zst"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	row, err := s.Battle(ctx, "b1")
	if err != nil {
		t.Fatalf("Battle: %v", err)
	}
	if row.Name != "duel" || row.Seed != 7 || row.Ticks != 420 || row.Winners != "tracker" || row.RecordingPath != "/tmp/b1.jsonl.zst" {
		t.Fatalf("row = %+v", row)
	}
	if row.FinishedAt.IsZero() {
		t.Fatalf("finished_at not set")
	}

	scores, err := s.Scores(ctx, "b1")
	if err != nil {
		t.Fatalf("Scores: %v", err)
	}
	if len(scores) != 2 || scores[0].ID != "tracker" || scores[0].BulletDamage != 112 || scores[0].Kills != 1 {
		t.Fatalf("scores = %+v", scores)
	}

	if _, err := s.Battle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Battle(missing) err = %v, want ErrNotFound", err)
	}
}

func TestRecordReplacesAndStandings(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if err := s.Record(ctx, "duel", 1, sampleResult("b1", "tracker"), ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Same ID again must not duplicate scores.
	if err := s.Record(ctx, "duel", 1, sampleResult("b1", "tracker"), ""); err != nil {
		t.Fatalf("Record again: %v", err)
	}
	if err := s.Record(ctx, "duel", 2, sampleResult("b2", "duck"), ""); err != nil {
		t.Fatalf("Record b2: %v", err)
	}

	standings, err := s.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("standings = %+v", standings)
	}
	top := standings[0]
	if top.Name != "tracker" || top.Battles != 2 || top.Wins != 1 || top.Total != 324 {
		t.Fatalf("top standing = %+v", top)
	}
	if standings[1].Name != "duck" || standings[1].Wins != 1 || standings[1].Total != 0 {
		t.Fatalf("second standing = %+v", standings[1])
	}

	if err := s.Record(ctx, "x", 0, nil, ""); err == nil {
		t.Fatalf("expected error for a nil result")
	}
}
