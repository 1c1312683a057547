package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerAddsBattleID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	ctx := ContextWithBattleID(context.Background(), "battle-1")
	log.With(String("agent", "spinner")).Warn(ctx, "agent disabled", Err(errors.New("too many calls")), Int64("tick", 12))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for key, want := range map[string]any{
		"msg":       "agent disabled",
		"level":     "WARN",
		"battle_id": "battle-1",
		"agent":     "spinner",
		"error":     "too many calls",
		"tick":      float64(12),
	} {
		if rec[key] != want {
			t.Fatalf("%s = %v, want %v", key, rec[key], want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "warn"}, &buf)
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	log.Error(context.Background(), "shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("error line missing: %q", buf.String())
	}
}

func TestContextHelpers(t *testing.T) {
	ctx, id := EnsureBattleID(context.Background())
	if id == "" || BattleIDFromContext(ctx) != id {
		t.Fatalf("EnsureBattleID did not store an ID")
	}
	if _, again := EnsureBattleID(ctx); again != id {
		t.Fatalf("EnsureBattleID replaced an existing ID")
	}

	ctx, reqID := EnsureRequestID(ctx)
	if reqID == "" || RequestIDFromContext(ctx) != reqID {
		t.Fatalf("EnsureRequestID did not store an ID")
	}

	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on a bare context")
	}
	if LoggerFromContext(ContextWithLogger(ctx, nil)) == nil {
		t.Fatalf("ContextWithLogger(nil) should store a noop logger")
	}
}
