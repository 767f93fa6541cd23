// Package server exposes the dashboard's HTTP API: Atlassian sign-in,
// snapshot reads, assistant chat and export, and a websocket event feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/tracker"
)

const sweepInterval = 5 * time.Minute

// Authenticator runs the OAuth authorization-code flow.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Sites(ctx context.Context, token *oauth2.Token) ([]tracker.Site, error)
}

// TrackerFactory creates the tracker client for a signed-in session.
type TrackerFactory func(ctx context.Context, token *oauth2.Token, site tracker.Site) (Tracker, error)

// Deps are the collaborators of a Server. Zero fields get production defaults.
type Deps struct {
	Auth       Authenticator
	NewTracker TrackerFactory
	Completer  assistant.Completer
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg        *config.Config
	auth       Authenticator
	newTracker TrackerFactory
	generator  *assistant.Generator
	completer  assistant.Completer
	sessions   *SessionStore
	hub        *Hub
	upgrader   websocket.Upgrader

	// ctx outlives requests; session clients and refreshers hang off it
	ctx    context.Context
	cancel context.CancelFunc
	server *http.Server
}

// New creates a server for cfg.
func New(cfg *config.Config, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:        cfg,
		auth:       deps.Auth,
		newTracker: deps.NewTracker,
		completer:  deps.Completer,
		sessions:   NewSessionStore(cfg.Server.SessionTTL),
		hub:        NewHub(),
		ctx:        ctx,
		cancel:     cancel,
	}
	if s.auth == nil {
		s.auth = NewAtlassianAuth(cfg.OAuth)
	}
	if s.newTracker == nil {
		s.newTracker = func(ctx context.Context, token *oauth2.Token, site tracker.Site) (Tracker, error) {
			c, err := tracker.NewOAuthClient(ctx, token, site.ID, cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if s.completer == nil {
		s.completer = assistant.NewCompleter(cfg.LLM)
	}
	s.generator = assistant.NewGenerator(s.completer, cfg.LLM.JSONMode)
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)
	go s.sessions.sweepLoop(ctx, sweepInterval)

	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /auth/atlassian", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("GET /auth/me", s.authed(s.handleMe))
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	mux.HandleFunc("GET /api/projects", s.authed(s.handleProjects))
	mux.HandleFunc("GET /api/bulk-data", s.authed(s.handleBulkData))
	mux.HandleFunc("GET /api/hierarchy/{projectKey}", s.authed(s.handleHierarchy))
	mux.HandleFunc("GET /api/testcases/{storyKey}", s.authed(s.handleTestCases))
	mux.HandleFunc("POST /api/refresh", s.authed(s.handleRefresh))
	mux.HandleFunc("GET /api/selection", s.authed(s.handleGetSelection))
	mux.HandleFunc("PUT /api/selection", s.authed(s.handlePutSelection))
	mux.HandleFunc("POST /api/generate", s.authed(s.handleGenerate))
	mux.HandleFunc("POST /api/export-items", s.authed(s.handleExportItems))
	mux.HandleFunc("POST /api/chat", s.authed(s.handleChat))
	mux.HandleFunc("GET /api/events", s.authed(s.handleEvents))

	return mux
}

// Start serves on the configured address until Shutdown is called.
func (s *Server) Start() error {
	logging.Info("server listening", "addr", s.cfg.Server.Addr, "frontend_url", s.cfg.Server.FrontendURL)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and drops every
// session. Safe to call without Start.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.Close()
	return err
}

// Close releases background work without touching the listener.
func (s *Server) Close() {
	s.sessions.CloseAll()
	s.cancel()
}

// Sessions exposes the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
