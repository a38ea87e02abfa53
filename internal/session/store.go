package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTTL is how long a session may sit untouched before eviction.
	DefaultTTL = 30 * time.Minute
	// DefaultSweepInterval is how often the reaper scans for expired sessions.
	DefaultSweepInterval = 5 * time.Minute
)

// Config configures a Store. Zero values fall back to the defaults above;
// Now is injectable so tests can drive the clock.
type Config struct {
	Root          string // storage root; each session owns Root/<id>/
	TTL           time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

// Store is the process-wide map of session id to session state. It supports
// concurrent get/touch/evict; eviction is atomic with respect to concurrent
// accessors (they observe an explicit expiry, never a half-deleted session).
type Store struct {
	root  string
	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty store rooted at cfg.Root.
func NewStore(cfg Config) *Store {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		root:     cfg.Root,
		ttl:      cfg.TTL,
		sweep:    cfg.SweepInterval,
		now:      cfg.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it (and its directory) on first
// use. A session whose TTL already lapsed is evicted and recreated fresh, so
// callers never resume a stale identity.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok && st.now().Sub(s.LastTouched()) > st.ttl {
		st.evictLocked(id, s)
		ok = false
	}
	if !ok {
		dir := filepath.Join(st.root, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			st.mu.Unlock()
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		s = newSession(id, dir, st.now)
		st.sessions[id] = s
		log.Info().Str("session", id).Msg("Session created")
	}
	st.mu.Unlock()

	s.Touch()
	return s, nil
}

// Lookup returns the session for id without creating one.
func (st *Store) Lookup(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Touch refreshes the inactivity timestamp for id, if present.
func (st *Store) Touch(id string) {
	if s, ok := st.Lookup(id); ok {
		s.Touch()
	}
}

// Evict removes the session and deletes every file it owns. Idempotent:
// evicting an unknown or already-evicted session is a no-op.
func (st *Store) Evict(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		st.evictLocked(id, s)
	}
	st.mu.Unlock()
}

// evictLocked marks the session expired before removing its files, so any
// in-flight holder fails with a session-expired error rather than reading
// deleted files. Caller holds st.mu.
func (st *Store) evictLocked(id string, s *Session) {
	delete(st.sessions, id)
	s.markEvicted()
	if err := os.RemoveAll(s.Dir()); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Failed to remove session files")
	}
	log.Info().Str("session", id).Msg("Session evicted")
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// SweepOnce evicts every session idle longer than the TTL and returns how
// many were evicted. The reaper calls this on its interval; tests call it
// directly with a controlled clock.
func (st *Store) SweepOnce() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	evicted := 0
	for id, s := range st.sessions {
		if now.Sub(s.LastTouched()) > st.ttl {
			st.evictLocked(id, s)
			evicted++
		}
	}
	return evicted
}

// Run executes the background reaper until ctx is cancelled.
func (st *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(st.sweep)
	defer ticker.Stop()

	log.Info().Dur("ttl", st.ttl).Dur("interval", st.sweep).Msg("Session reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Session reaper stopped")
			return
		case <-ticker.C:
			if n := st.SweepOnce(); n > 0 {
				log.Info().Int("evicted", n).Msg("Reaper sweep complete")
			}
		}
	}
}
