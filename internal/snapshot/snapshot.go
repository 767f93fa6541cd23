// Package snapshot caches the normalized tracker data a session works with
// and keeps it fresh in the background.
package snapshot

import (
	"time"

	"github.com/danielolaszy/prism/internal/hierarchy"
	"github.com/danielolaszy/prism/pkg/models"
)

// Snapshot is an immutable view of everything the dashboard renders.
// Callers must not modify it.
type Snapshot struct {
	Projects         []models.Project
	Issues           []models.Issue
	TestCasesByStory map[string][]models.TestCase
	Tree             hierarchy.Tree
	Metadata         Metadata
}

// Metadata describes how and when a snapshot was loaded.
type Metadata struct {
	TotalProjects int       `json:"totalProjects"`
	TotalIssues   int       `json:"totalIssues"`
	Skipped       int       `json:"skipped"`
	LoadTimeMS    int64     `json:"loadTime"`
	LoadedAt      time.Time `json:"loadedAt"`
	Breakdown     Breakdown `json:"breakdown"`

	generation uint64
}

// Breakdown counts issues by normalized type.
type Breakdown struct {
	Epics     int `json:"epics"`
	Stories   int `json:"stories"`
	Tasks     int `json:"tasks"`
	Bugs      int `json:"bugs"`
	TestCases int `json:"testCases"`
}

// New builds a snapshot from normalized data.
func New(projects []models.Project, issues []models.Issue, skipped int) *Snapshot {
	byStory := hierarchy.TestCasesByStory(issues)

	s := &Snapshot{
		Projects:         projects,
		Issues:           issues,
		TestCasesByStory: byStory,
		Tree:             hierarchy.Build(issues, byStory),
		Metadata: Metadata{
			TotalProjects: len(projects),
			TotalIssues:   len(issues),
			Skipped:       skipped,
		},
	}

	for _, issue := range issues {
		switch issue.Type {
		case models.TypeEpic:
			s.Metadata.Breakdown.Epics++
		case models.TypeStory:
			s.Metadata.Breakdown.Stories++
		case models.TypeTask:
			s.Metadata.Breakdown.Tasks++
		case models.TypeBug:
			s.Metadata.Breakdown.Bugs++
		case models.TypeTestCase:
			s.Metadata.Breakdown.TestCases++
		}
	}

	return s
}

// OfType returns the issues of type t in snapshot order.
func (s *Snapshot) OfType(t models.IssueType) []models.Issue {
	out := []models.Issue{}
	for _, issue := range s.Issues {
		if issue.Type == t {
			out = append(out, issue)
		}
	}
	return out
}

// Project finds a project by key.
func (s *Snapshot) Project(key string) (models.Project, bool) {
	for _, p := range s.Projects {
		if p.Key == key {
			return p, true
		}
	}
	return models.Project{}, false
}

// Issue finds an issue by key.
func (s *Snapshot) Issue(key string) (models.Issue, bool) {
	for _, issue := range s.Issues {
		if issue.Key == key {
			return issue, true
		}
	}
	return models.Issue{}, false
}
