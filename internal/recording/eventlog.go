// Package recording writes the per-tick history of a battle to a
// zstd-compressed JSON lines file.
package recording

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("event log closed")

// EventLog is one battle's compressed frame log.
type EventLog struct {
	path string
	log  logging.Logger

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	frames int64
}

// Path returns the log file for battleID under dir.
func Path(dir, battleID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.jsonl.zst", battleID))
}

// Create opens a new log for battleID under dir, replacing any earlier
// log of the same battle.
func Create(dir, battleID string, log logging.Logger) (*EventLog, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := Path(dir, battleID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &EventLog{
		path: path,
		log:  log,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (l *EventLog) Path() string { return l.path }

// Frames returns how many frames were written.
func (l *EventLog) Frames() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Write appends one frame.
func (l *EventLog) Write(f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return ErrClosed
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	l.frames++
	return nil
}

// Attach records every snapshot s publishes from now on. The returned
// function detaches the log; it does not close it.
func (l *EventLog) Attach(s *state.BattleState) (detach func()) {
	return s.Subscribe(func(snap *state.Snapshot) {
		if err := l.Write(NewFrame(snap)); err != nil && !errors.Is(err, ErrClosed) {
			l.log.Warn(context.Background(), "recording frame failed",
				logging.String("battle_id", snap.BattleID),
				logging.Int64("tick", snap.Tick),
				logging.Err(err),
			)
		}
	})
}

// Close flushes and closes the log. It is safe to call twice.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Flush()
	if cerr := l.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.w, l.enc, l.f = nil, nil, nil
	return err
}

// ReadFile decodes every frame of a log written by EventLog.
func ReadFile(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var frames []Frame
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var fr Frame
		if err := json.Unmarshal(sc.Bytes(), &fr); err != nil {
			return frames, fmt.Errorf("%s: frame %d: %w", path, len(frames)+1, err)
		}
		frames = append(frames, fr)
	}
	return frames, sc.Err()
}
