package proxy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultDataQuota is the byte budget of an agent's data directory.
const DefaultDataQuota = 200000

// Quota scopes an agent's persistent files to one flat directory with a
// total size budget.
type Quota struct {
	dir   string
	limit int64

	mu    sync.Mutex
	sizes map[string]int64
}

// NewQuota creates dir if needed and accounts for the files already in it.
func NewQuota(dir string, limit int64) (*Quota, error) {
	if limit <= 0 {
		limit = DefaultDataQuota
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	q := &Quota{dir: dir, limit: limit, sizes: make(map[string]int64)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
		q.sizes[e.Name()] = info.Size()
	}
	return q, nil
}

// Dir returns the backing directory.
func (q *Quota) Dir() string { return q.dir }

// Available returns the bytes still writable.
func (q *Quota) Available() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.usedLocked()
}

func (q *Quota) usedLocked() int64 {
	var n int64
	for _, s := range q.sizes {
		n += s
	}
	return n
}

func validName(name string) bool {
	return name != "" && filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

// Create truncates or creates name. Writes that would push the directory
// past its budget fail with ErrQuotaExceeded and write nothing.
func (q *Quota) Create(name string) (*QuotaFile, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	f, err := os.Create(filepath.Join(q.dir, name))
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.sizes[name] = 0
	q.mu.Unlock()
	return &QuotaFile{q: q, name: name, f: f}, nil
}

// Read returns the contents of name.
func (q *Quota) Read(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return os.ReadFile(filepath.Join(q.dir, name))
}

// QuotaFile is a data file open for writing.
type QuotaFile struct {
	q    *Quota
	name string
	f    *os.File
}

func (w *QuotaFile) Write(p []byte) (int, error) {
	w.q.mu.Lock()
	if w.q.usedLocked()+int64(len(p)) > w.q.limit {
		w.q.mu.Unlock()
		return 0, ErrQuotaExceeded
	}
	w.q.sizes[w.name] += int64(len(p))
	w.q.mu.Unlock()

	n, err := w.f.Write(p)
	if n < len(p) {
		w.q.mu.Lock()
		w.q.sizes[w.name] -= int64(len(p) - n)
		w.q.mu.Unlock()
	}
	return n, err
}

func (w *QuotaFile) Close() error { return w.f.Close() }
