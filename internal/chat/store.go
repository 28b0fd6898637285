package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"oshaberi/internal/style"
)

// Defaults are the flag values a new session starts with.
type Defaults struct {
	Style       string
	Temperature float64
}

// Store partitions state by session id. A session is created on first
// access and lives until it is deleted or swept for inactivity.
type Store struct {
	styles   *style.Registry
	defaults Defaults
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(styles *style.Registry, defaults Defaults, logger *slog.Logger) (*Store, error) {
	if defaults.Style == "" {
		defaults.Style = styles.Default()
	}
	if _, err := styles.Lookup(defaults.Style); err != nil {
		return nil, err
	}
	if err := ValidateTemperature(defaults.Temperature); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		styles:   styles,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// NewID mints a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the session for id, creating it on first access.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

// Attach returns the session for id pinned against Sweep until release is
// called. Release counts as activity, so the idle clock restarts when the
// last connection goes away.
func (s *Store) Attach(id string) (sess *Session, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess = s.getLocked(id)
	sess.mu.Lock()
	sess.conns++
	sess.lastActive = sess.now()
	sess.mu.Unlock()

	var once sync.Once
	return sess, func() {
		once.Do(func() {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			sess.conns--
			sess.lastActive = sess.now()
		})
	}
}

func (s *Store) getLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	// defaults were validated in NewStore
	sess, _ := newSession(id, s.styles, s.defaults, s.now)
	s.sessions[id] = sess
	s.logger.Info("session created", "session", id, "style", sess.style)
	return sess
}

func (s *Store) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.logger.Info("session deleted", "session", id)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops unattached sessions idle for longer than idle and returns how
// many went.
func (s *Store) Sweep(idle time.Duration) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.expired(now, idle) {
			delete(s.sessions, id)
			removed++
			s.logger.Info("session expired", "session", id)
		}
	}
	return removed
}
