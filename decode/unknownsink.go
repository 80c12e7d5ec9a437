// This file implements the unknown-payload sink (spec.md §6): raw
// command bodies for unrecognized tags or event codes are written to a
// configurable directory, one file per unrecognized (kind, code) pair
// per minute.
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UnknownSink deduplicates and writes raw payload dumps for offline
// analysis. It is safe for concurrent use, though in practice only the
// pipeline thread calls it.
type UnknownSink struct {
	dir   string
	runID uuid.UUID

	mu       sync.Mutex
	lastDump map[string]time.Time
}

// NewUnknownSink creates a sink rooted at dir. dir is created on first
// write if it does not already exist.
func NewUnknownSink(dir string) *UnknownSink {
	return &UnknownSink{
		dir:      dir,
		runID:    uuid.New(),
		lastDump: make(map[string]time.Time),
	}
}

// RunID identifies this sink's capture run, so dumps from concurrent
// operator sessions never collide on disk.
func (s *UnknownSink) RunID() uuid.UUID {
	return s.runID
}

// Dump writes raw to a file named "<epoch_ms>_<code>_<kind>.bin" under
// the sink's directory, unless a dump for the same (kind, code) pair
// already happened within the last minute.
func (s *UnknownSink) Dump(kind string, code byte, ts time.Time, raw []byte) error {
	dedupeKey := fmt.Sprintf("%s:%d", kind, code)

	s.mu.Lock()
	if last, ok := s.lastDump[dedupeKey]; ok && ts.Sub(last) < time.Minute {
		s.mu.Unlock()
		return nil
	}
	s.lastDump[dedupeKey] = ts
	s.mu.Unlock()

	dir := filepath.Join(s.dir, s.runID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := fmt.Sprintf("%d_%d_%s.bin", ts.UnixMilli(), code, kind)
	return os.WriteFile(filepath.Join(dir, name), raw, 0o644)
}
