package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielolaszy/prism/internal/export"
	"github.com/danielolaszy/prism/internal/hierarchy"
	"github.com/danielolaszy/prism/internal/snapshot"
	"github.com/danielolaszy/prism/pkg/models"
)

const (
	selectionCookie    = "selectedProjectKey"
	selectionCookieAge = 365 * 24 * 60 * 60
	maxBodyBytes       = 1 << 20
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", errBadRequest)
	}
	return nil
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request, sess *Session) {
	snap, err := sess.Cache.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, snap.Projects)
}

type bulkData struct {
	Projects  []models.Project  `json:"projects"`
	Epics     []models.Issue    `json:"epics"`
	Stories   []models.Issue    `json:"stories"`
	Tasks     []models.Issue    `json:"tasks"`
	TestCases []models.Issue    `json:"testCases"`
	Metadata  snapshot.Metadata `json:"metadata"`
}

func (s *Server) handleBulkData(w http.ResponseWriter, r *http.Request, sess *Session) {
	snap, err := sess.Cache.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, bulkData{
		Projects:  snap.Projects,
		Epics:     snap.OfType(models.TypeEpic),
		Stories:   snap.OfType(models.TypeStory),
		Tasks:     append(snap.OfType(models.TypeTask), snap.OfType(models.TypeBug)...),
		TestCases: snap.OfType(models.TypeTestCase),
		Metadata:  snap.Metadata,
	})
}

type hierarchyResponse struct {
	ProjectKey string                   `json:"projectKey"`
	Epics      []models.EpicWithStories `json:"epics"`
	Orphans    []models.StoryNode       `json:"orphans"`
	Stats      models.Stats             `json:"stats"`
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request, sess *Session) {
	projectKey := r.PathValue("projectKey")

	snap, err := sess.Cache.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	tree := hierarchy.ForProject(snap.Tree, projectKey)
	jsonResponse(w, http.StatusOK, hierarchyResponse{
		ProjectKey: projectKey,
		Epics:      tree.Epics,
		Orphans:    tree.Orphans,
		Stats:      hierarchy.ProjectStats(snap.Tree, projectKey),
	})
}

type testCasesResponse struct {
	StoryKey  string            `json:"storyKey"`
	TestCases []models.TestCase `json:"testCases"`
	Stats     models.Stats      `json:"stats"`
}

func (s *Server) handleTestCases(w http.ResponseWriter, r *http.Request, sess *Session) {
	storyKey := r.PathValue("storyKey")

	cases, err := sess.Tracker.GetTestCases(r.Context(), storyKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, testCasesResponse{
		StoryKey:  storyKey,
		TestCases: cases,
		Stats:     hierarchy.StatsFor(cases),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, sess *Session) {
	snap, err := sess.Cache.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"metadata": snap.Metadata,
	})
}

type selection struct {
	ProjectKey string `json:"projectKey"`
}

// handleGetSelection returns the remembered project, falling back to the
// first project when none is remembered or it no longer exists.
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request, sess *Session) {
	snap, err := sess.Cache.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var key string
	if c, err := r.Cookie(selectionCookie); err == nil {
		if _, ok := snap.Project(c.Value); ok {
			key = c.Value
		}
	}
	if key == "" && len(snap.Projects) > 0 {
		key = snap.Projects[0].Key
	}

	jsonResponse(w, http.StatusOK, selection{ProjectKey: key})
}

func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req selection
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.ProjectKey = strings.TrimSpace(req.ProjectKey)
	if req.ProjectKey == "" {
		badRequest(w, "projectKey is required")
		return
	}

	s.setCookie(w, selectionCookie, req.ProjectKey, selectionCookieAge)
	jsonResponse(w, http.StatusOK, req)
}

type generateRequest struct {
	Kind      models.ItemKind `json:"kind"`
	ParentKey string          `json:"parentKey"`
	Summary   string          `json:"summary"`
	Count     int             `json:"count"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Kind.Valid() {
		badRequest(w, fmt.Sprintf("unknown kind %q", req.Kind))
		return
	}

	summary := strings.TrimSpace(req.Summary)
	if summary == "" && req.ParentKey != "" {
		if snap := sess.Cache.Current(); snap != nil {
			if issue, ok := snap.Issue(req.ParentKey); ok {
				summary = issue.Summary
			}
		}
	}
	if summary == "" {
		badRequest(w, "summary is required")
		return
	}

	gen, err := s.generator.Generate(r.Context(), req.Kind, summary, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"kind":      gen.Kind,
		"parentKey": req.ParentKey,
		"items":     gen.Items,
		"raw":       gen.Raw,
	})
}

type exportRequest struct {
	Type      models.ItemKind     `json:"type"`
	ParentKey string              `json:"parentKey"`
	Items     []models.ParsedItem `json:"items"`
}

func (s *Server) handleExportItems(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.pipeline(sess).Run(r.Context(), req.Type, req.ParentKey, req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

func (s *Server) pipeline(sess *Session) *export.Pipeline {
	return export.NewPipeline(sess.Tracker, s.cfg.Tracker, sess.Cache.Invalidate)
}
