package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prism/pkg/models"
)

func TestProjectSummary(t *testing.T) {
	l := sampleLoader()
	l.issues = append(l.issues, models.Issue{
		Key: "OTHER-1", Summary: "Elsewhere", Type: models.TypeStory, ProjectKey: "OTHER", ParentKey: "OTHER-9",
	})
	s := New(l.projects, l.issues, 0)
	s.Metadata.LoadedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	got := s.ProjectSummary("PROJ")
	assert.Equal(t, "PROJ", got.ProjectKey)
	assert.Equal(t, "2026-03-01T09:30:00Z", got.LoadedAt)
	assert.Equal(t, models.Stats{Passing: 1, Breaking: 1, Total: 2, PassRate: 50}, got.Stats)
	require.Len(t, got.Epics, 1)
	assert.Equal(t, EpicSummary{
		Key:     "PROJ-1",
		Summary: "Login",
		Stories: 1,
		Stats:   models.Stats{Passing: 1, Breaking: 1, Total: 2, PassRate: 50},
	}, got.Epics[0])
	assert.Empty(t, got.Orphans)

	other := s.ProjectSummary("OTHER")
	assert.Empty(t, other.Epics)
	require.Len(t, other.Orphans, 1)
	assert.Equal(t, "OTHER-1", other.Orphans[0].Story.Key)
}

func TestProjectSummaryUnloaded(t *testing.T) {
	s := New(nil, nil, 0)
	got := s.ProjectSummary("PROJ")
	assert.Empty(t, got.LoadedAt)
	assert.NotNil(t, got.Epics)
	assert.Equal(t, models.Stats{}, got.Stats)
}
