package snapshot

import (
	"time"

	"github.com/danielolaszy/prism/internal/hierarchy"
	"github.com/danielolaszy/prism/pkg/models"
)

// ProjectSummary is the rollup of one project.
type ProjectSummary struct {
	ProjectKey string             `json:"projectKey" yaml:"projectKey"`
	Stats      models.Stats       `json:"stats" yaml:"stats"`
	Epics      []EpicSummary      `json:"epics" yaml:"epics"`
	Orphans    []models.StoryNode `json:"orphans,omitempty" yaml:"orphans,omitempty"`
	LoadedAt   string             `json:"loadedAt" yaml:"loadedAt"`
}

// EpicSummary is an epic's rollup without its stories.
type EpicSummary struct {
	Key     string       `json:"key" yaml:"key"`
	Summary string       `json:"summary" yaml:"summary"`
	Stories int          `json:"stories" yaml:"stories"`
	Stats   models.Stats `json:"stats" yaml:"stats"`
}

// ProjectSummary summarizes the rollups of projectKey.
func (s *Snapshot) ProjectSummary(projectKey string) ProjectSummary {
	tree := hierarchy.ForProject(s.Tree, projectKey)

	out := ProjectSummary{
		ProjectKey: projectKey,
		Stats:      hierarchy.ProjectStats(s.Tree, projectKey),
		Epics:      make([]EpicSummary, 0, len(tree.Epics)),
		Orphans:    tree.Orphans,
	}
	if !s.Metadata.LoadedAt.IsZero() {
		out.LoadedAt = s.Metadata.LoadedAt.Format(time.RFC3339)
	}
	for _, e := range tree.Epics {
		out.Epics = append(out.Epics, EpicSummary{
			Key:     e.Epic.Key,
			Summary: e.Epic.Summary,
			Stories: len(e.Stories),
			Stats:   e.Stats,
		})
	}
	return out
}
