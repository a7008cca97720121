// Package stabilizer debounces the per-frame OCR hit token into a confirmed
// state that survives process restarts.
//
// State is kept per camera serial in a small key=value file under the output
// directory:
//
//	stable=LowBattery
//	candidate=
//	hits=0
package stabilizer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

const (
	filePrefix = "state_cache_"
	noSerial   = "noserial"

	// DefaultLockTimeout bounds the wait for the cache file lock.
	DefaultLockTimeout = 2 * time.Second
)

// State is the debounce state for one key.
type State struct {
	Stable    string
	Candidate string
	Hits      int
}

// Next applies one observation to prev.
func Next(prev State, instant string, confirmHits int) State {
	confirmHits = max(1, confirmHits)
	s := prev

	switch {
	case strings.TrimSpace(instant) == "":
		s.Candidate, s.Hits = "", 0
		return s
	case strings.EqualFold(s.Stable, instant):
		s.Candidate, s.Hits = "", 0
		return s
	case strings.EqualFold(s.Candidate, instant):
		s.Hits++
	default:
		s.Candidate, s.Hits = instant, 1
	}

	if s.Hits >= confirmHits {
		s.Stable = s.Candidate
		s.Candidate, s.Hits = "", 0
	}
	return s
}

// Stabilizer persists State across invocations.
type Stabilizer struct {
	// LockTimeout bounds the wait for the advisory lock around the
	// read-modify-write cycle. On timeout the update proceeds unlocked.
	LockTimeout time.Duration
}

// New returns a Stabilizer with DefaultLockTimeout.
func New() *Stabilizer {
	return &Stabilizer{LockTimeout: DefaultLockTimeout}
}

// Path returns the cache file for serial under outDir.
func Path(outDir, serial string) string {
	key := strings.TrimSpace(serial)
	if key == "" {
		key = noSerial
	}
	return filepath.Join(outDir, filePrefix+key+".txt")
}

// Update reads the cached state for serial, applies instant and writes the
// result back. Cache read failures start from the empty state and write
// failures are logged, so Update never fails.
func (s *Stabilizer) Update(outDir, serial, instant string, confirmHits int) State {
	path := Path(outDir, serial)

	unlock := s.lock(path)
	defer unlock()

	next := Next(Load(path), instant, confirmHits)
	if err := Save(path, next); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to write state cache")
	}

	log.Debug().
		Str("instant", instant).
		Str("stable", next.Stable).
		Str("candidate", next.Candidate).
		Int("hits", next.Hits).
		Msg("Stabilizer updated")
	return next
}

func (s *Stabilizer) lock(path string) func() {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return func() {}
	}

	timeout := s.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil || !locked {
		log.Warn().Err(err).Str("path", path).Msg("State cache lock unavailable, updating unlocked")
		return func() {}
	}
	return func() { _ = fl.Unlock() }
}

// Load reads a cache file. A missing or unreadable file yields the zero State.
func Load(path string) State {
	var s State

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		v = strings.TrimSpace(v)

		switch strings.ToLower(k) {
		case "stable":
			s.Stable = v
		case "candidate":
			s.Candidate = v
		case "hits":
			if n, err := strconv.Atoi(v); err == nil {
				s.Hits = n
			}
		}
	}
	return s
}

// Save writes s to path, creating the directory if needed.
func Save(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data := fmt.Sprintf("stable=%s\ncandidate=%s\nhits=%d\n", s.Stable, s.Candidate, s.Hits)
	return os.WriteFile(path, []byte(data), 0o644)
}
