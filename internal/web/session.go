package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/artwork-browser/internal/view"
	"github.com/Sternrassler/artwork-browser/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// SessionCookie names the cookie carrying the viewer session id.
const SessionCookie = "artwork_session"

var webSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "artic_web_sessions",
	Help: "Live viewer sessions",
})

// Session is one viewer's table. Its state lives only in process memory.
type Session struct {
	ID   string
	View *view.Controller

	mu       sync.Mutex
	flash    []string
	lastSeen time.Time
}

// Notify queues a message for the next page render.
func (s *Session) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = append(s.flash, message)
}

// TakeFlash returns and clears the queued messages.
func (s *Session) TakeFlash() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	flash := s.flash
	s.flash = nil
	return flash
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Sessions maps session ids to their tables.
type Sessions struct {
	fetcher view.Fetcher
	opts    view.Options
	ttl     time.Duration
	limit   int
	logger  zerolog.Logger

	mu    sync.Mutex
	items map[string]*Session
}

// NewSessions creates a session store. Every session gets its own
// controller built from opts. Sessions idle for longer than ttl are
// dropped by Sweep; a zero ttl keeps them forever. At most limit sessions
// live at once; creating one more evicts the longest idle. A zero limit
// means no cap.
func NewSessions(fetcher view.Fetcher, opts view.Options, ttl time.Duration, limit int) *Sessions {
	return &Sessions{
		fetcher: fetcher,
		opts:    opts,
		ttl:     ttl,
		limit:   limit,
		logger:  logging.NewLogger("web"),
		items:   make(map[string]*Session),
	}
}

// Get returns the live session with id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if ok {
		sess.touch(time.Now())
	}
	return sess, ok
}

// Create starts a new session with a fresh table on page 1.
func (s *Sessions) Create() *Session {
	id := uuid.NewString()
	sess := &Session{ID: id, lastSeen: time.Now()}

	opts := s.opts
	opts.Notifier = sess
	opts.Logger = logging.ForSession(s.opts.Logger, id)
	sess.View = view.New(s.fetcher, opts)

	s.mu.Lock()
	evicted := ""
	if s.limit > 0 && len(s.items) >= s.limit {
		evicted = s.evictLocked(sess.lastSeen)
	}
	s.items[id] = sess
	n := len(s.items)
	s.mu.Unlock()

	webSessions.Set(float64(n))
	if evicted != "" {
		s.logger.Info().Str("session", evicted).Int("limit", s.limit).Msg("Session evicted")
	}
	s.logger.Info().Str("session", id).Int("sessions", n).Msg("Session created")
	return sess
}

// evictLocked drops the longest idle session and returns its id. s.mu must be held.
func (s *Sessions) evictLocked(now time.Time) string {
	var (
		oldest string
		idle   time.Duration = -1
	)
	for id, sess := range s.items {
		if d := sess.idleSince(now); d > idle {
			oldest, idle = id, d
		}
	}
	if oldest != "" {
		delete(s.items, oldest)
	}
	return oldest
}

// Blank returns the snapshot of a table that has not loaded anything.
func (s *Sessions) Blank() view.Snapshot {
	return view.New(s.fetcher, s.opts).Snapshot()
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep drops sessions idle for longer than the ttl and returns how many went.
func (s *Sessions) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	removed := 0
	for id, sess := range s.items {
		if sess.idleSince(now) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	n := len(s.items)
	s.mu.Unlock()

	if removed > 0 {
		webSessions.Set(float64(n))
		s.logger.Info().Int("expired", removed).Int("sessions", n).Msg("Sessions expired")
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

type sessionKey struct{}

// SessionFrom returns the session attached by the session middleware.
func SessionFrom(r *http.Request) *Session {
	sess, _ := r.Context().Value(sessionKey{}).(*Session)
	return sess
}
