package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/export"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/snapshot"
	"github.com/danielolaszy/prism/internal/tracker"
	"github.com/danielolaszy/prism/pkg/models"
)

const sessionCookie = "prism_session"

// Tracker is the tracker access a session needs.
type Tracker interface {
	snapshot.Loader
	export.IssueCreator
	GetTestCases(ctx context.Context, storyKey string) ([]models.TestCase, error)
	Myself(ctx context.Context) (tracker.User, error)
}

// Session is one signed-in user. Everything hangs off it and lives in memory.
type Session struct {
	ID        string
	Token     *oauth2.Token
	Site      tracker.Site
	Tracker   Tracker
	Cache     *snapshot.Cache
	Chats     *assistant.Store
	ExpiresAt time.Time

	refresher *snapshot.Refresher
}

func (s *Session) close() {
	if s.refresher != nil {
		s.refresher.Stop()
	}
}

// SessionStore holds live sessions and expires them after ttl.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add assigns sess an ID and expiry and stores it.
func (st *SessionStore) Add(sess *Session) *Session {
	sess.ID = uuid.NewString()
	sess.ExpiresAt = st.now().Add(st.ttl)

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns the live session for id. Expired sessions are removed.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	expired := ok && !st.now().Before(sess.ExpiresAt)
	if expired {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if expired {
		sess.close()
		return nil, false
	}
	return sess, ok
}

// Delete removes the session for id, if any.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		sess.close()
	}
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops every expired session.
func (st *SessionStore) Sweep() int {
	now := st.now()

	st.mu.Lock()
	var expired []*Session
	for id, sess := range st.sessions {
		if !now.Before(sess.ExpiresAt) {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	return len(expired)
}

// CloseAll drops every session.
func (st *SessionStore) CloseAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
}

// sweepLoop expires sessions until ctx is done.
func (st *SessionStore) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				logging.Info("expired sessions", "count", n)
			}
		}
	}
}

// session resolves the request's session cookie.
func (s *Server) session(r *http.Request) (*Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, errNoSession
	}
	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		return nil, errNoSession
	}
	return sess, nil
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

// authed wraps h so it only runs with a live session.
func (s *Server) authed(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, sess)
	}
}
