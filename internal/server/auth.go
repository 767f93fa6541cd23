package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/snapshot"
	"github.com/danielolaszy/prism/internal/tracker"
)

const (
	stateCookie    = "oauth_state"
	stateCookieAge = 10 * 60
)

// AtlassianAuth is the Authenticator for Atlassian cloud.
type AtlassianAuth struct {
	oc *oauth2.Config
}

// NewAtlassianAuth creates an authenticator for the app credentials in cfg.
func NewAtlassianAuth(cfg config.OAuthConfig) *AtlassianAuth {
	return &AtlassianAuth{oc: tracker.OAuthConfig(cfg)}
}

func (a *AtlassianAuth) AuthCodeURL(state string) string {
	return tracker.AuthCodeURL(a.oc, state)
}

func (a *AtlassianAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return a.oc.Exchange(ctx, code)
}

func (a *AtlassianAuth) Sites(ctx context.Context, token *oauth2.Token) ([]tracker.Site, error) {
	return tracker.AccessibleResources(ctx, token)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	s.setCookie(w, name, "", -1)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	s.setCookie(w, stateCookie, state, stateCookieAge)
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		badRequest(w, "Authorization code not provided")
		return
	}

	stored, err := r.Cookie(stateCookie)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(stored.Value)) != 1 {
		logging.Warn("oauth state mismatch", "has_cookie", err == nil)
		badRequest(w, "Invalid state parameter")
		return
	}
	s.clearCookie(w, stateCookie)

	token, err := s.auth.Exchange(r.Context(), code)
	if err != nil {
		logging.Error("oauth code exchange failed", "error", err)
		jsonResponse(w, http.StatusBadGateway, errorBody{
			Error:   "Authentication failed",
			Code:    "authentication_failed",
			Details: err.Error(),
		})
		return
	}

	sites, err := s.auth.Sites(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(sites) == 0 {
		jsonResponse(w, http.StatusForbidden, errorBody{
			Error: "No accessible Jira sites for this account",
			Code:  "insufficient_permission",
		})
		return
	}

	sess, err := s.startSession(token, sites[0])
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.setCookie(w, sessionCookie, sess.ID, int(s.sessions.ttl.Seconds()))
	logging.Info("user signed in",
		"site", sess.Site.Name,
		"token", logging.MaskSensitive(token.AccessToken))

	http.Redirect(w, r, strings.TrimSuffix(s.cfg.Server.FrontendURL, "/")+"/", http.StatusFound)
}

// startSession builds the tracker client, cache and refresher for a new sign-in.
func (s *Server) startSession(token *oauth2.Token, site tracker.Site) (*Session, error) {
	// the client refreshes its token long after the callback request ends
	client, err := s.newTracker(s.ctx, token, site)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Token:   token,
		Site:    site,
		Tracker: client,
		Chats:   assistant.NewStore(),
	}
	sess.Cache = snapshot.NewCache(client, snapshot.WithOnRefresh(func(snap *snapshot.Snapshot) {
		s.hub.Publish(sess.ID, EventBulkDataRefreshed, snap.Metadata)
	}))
	s.sessions.Add(sess)

	sess.refresher = snapshot.NewRefresher(sess.Cache, s.cfg.Refresh.Interval)
	sess.refresher.Start(s.ctx)
	return sess, nil
}

type meResponse struct {
	Name      string       `json:"name"`
	Email     string       `json:"email,omitempty"`
	AccountID string       `json:"account_id"`
	Picture   string       `json:"picture,omitempty"`
	Site      tracker.Site `json:"site"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sess *Session) {
	user, err := sess.Tracker.Myself(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, meResponse{
		Name:      user.DisplayName,
		Email:     user.Email,
		AccountID: user.AccountID,
		Picture:   user.AvatarURL,
		Site:      sess.Site,
	})
}

// handleLogout works with or without a live session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		s.sessions.Delete(c.Value)
	}
	s.clearCookie(w, sessionCookie)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
