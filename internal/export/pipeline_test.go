package export

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/tracker"
	"github.com/danielolaszy/prism/pkg/models"
)

type fakeCreator struct {
	mu       sync.Mutex
	requests []tracker.CreateIssueRequest
	fail     map[string]error
	next     int
}

func (f *fakeCreator) CreateIssue(_ context.Context, r tracker.CreateIssueRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	if err := f.fail[r.Summary]; err != nil {
		return "", err
	}
	f.next++
	return r.ProjectKey + "-" + string(rune('0'+f.next)), nil
}

func items(titles ...string) []models.ParsedItem {
	out := make([]models.ParsedItem, 0, len(titles))
	for _, title := range titles {
		out = append(out, models.ParsedItem{Title: title, Description: "About " + title})
	}
	return out
}

func TestRunIsolatesFailures(t *testing.T) {
	creator := &fakeCreator{fail: map[string]error{
		"Second": tracker.ErrRejected,
	}}
	invalidated := 0
	p := NewPipeline(creator, config.TrackerConfig{TestCaseType: "Sub-task"}, func() { invalidated++ })

	report, err := p.Run(context.Background(), models.KindTestCase, "PROJ-2", items("First", "Second", "Third"))
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 3, Successful: 2, Failed: 1}, report.Summary)
	assert.True(t, report.Success)
	require.Len(t, report.Results, 3)

	assert.True(t, report.Results[0].Success)
	assert.Equal(t, "PROJ-1", report.Results[0].IssueKey)
	assert.Equal(t, "Successfully exported to Jira", report.Results[0].Message)

	assert.False(t, report.Results[1].Success)
	assert.Equal(t, "Second", report.Results[1].Item)
	assert.Equal(t, "rejected", report.Results[1].Code)
	assert.NotEmpty(t, report.Results[1].Error)
	assert.Empty(t, report.Results[1].IssueKey)

	assert.True(t, report.Results[2].Success)
	assert.Equal(t, "PROJ-2", report.Results[2].IssueKey)

	// every item was attempted once, in order
	require.Len(t, creator.requests, 3)
	assert.Equal(t, "Third", creator.requests[2].Summary)
	assert.Equal(t, 1, invalidated)
}

func TestRunAllFailedDoesNotInvalidate(t *testing.T) {
	creator := &fakeCreator{fail: map[string]error{"Only": tracker.ErrForbidden}}
	invalidated := false
	p := NewPipeline(creator, config.TrackerConfig{}, func() { invalidated = true })

	report, err := p.Run(context.Background(), models.KindStory, "PROJ-1", items("Only"))
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, Summary{Total: 1, Failed: 1}, report.Summary)
	assert.Equal(t, "insufficient_permission", report.Results[0].Code)
	assert.False(t, invalidated)
}

func TestRunRejectsEmptyAndInvalidInput(t *testing.T) {
	p := NewPipeline(&fakeCreator{}, config.TrackerConfig{}, nil)

	tests := []struct {
		name      string
		kind      models.ItemKind
		parentKey string
		items     []models.ParsedItem
		want      error
	}{
		{name: "No items", kind: models.KindTestCase, parentKey: "PROJ-2", want: ErrNothingToExport},
		{name: "Only untitled items", kind: models.KindTestCase, parentKey: "PROJ-2", items: items("", "  "), want: ErrNothingToExport},
		{name: "Unknown kind", kind: models.ItemKind("epic"), parentKey: "PROJ-2", items: items("A"), want: ErrInvalidRequest},
		{name: "Parent is not a key", kind: models.KindStory, parentKey: "PROJ", items: items("A"), want: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(context.Background(), tt.kind, tt.parentKey, tt.items)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunUntitledItemFailsAlone(t *testing.T) {
	creator := &fakeCreator{}
	p := NewPipeline(creator, config.TrackerConfig{}, nil)

	report, err := p.Run(context.Background(), models.KindTestCase, "PROJ-2", items("A", ""))
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Successful: 1, Failed: 1}, report.Summary)
	assert.Equal(t, "invalid_item", report.Results[1].Code)
	assert.Len(t, creator.requests, 1)
}

func TestRunStopsSubmittingWhenCancelled(t *testing.T) {
	creator := &fakeCreator{}
	p := NewPipeline(creator, config.TrackerConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx, models.KindTestCase, "PROJ-2", items("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Failed)
	assert.Empty(t, creator.requests)
}

func TestBuildRequest(t *testing.T) {
	p := NewPipeline(nil, config.TrackerConfig{TestCaseType: "Test"}, nil)

	tc := p.BuildRequest(models.KindTestCase, "PROJ-2", models.ParsedItem{
		Title:          " Login ",
		Description:    "Valid login",
		Steps:          "Open page",
		ExpectedResult: "Dashboard",
	})
	assert.Equal(t, tracker.CreateIssueRequest{
		ProjectKey:  "PROJ",
		Summary:     "Login",
		Description: "Valid login\n\nRelated to: PROJ-2\n\nSteps:\nOpen page\n\nExpected Result:\nDashboard",
		IssueType:   "Test",
		ParentKey:   "PROJ-2",
	}, tc)

	story := p.BuildRequest(models.KindStory, "PROJ-1", models.ParsedItem{
		Title:              "Reset",
		Description:        "As a user...",
		AcceptanceCriteria: "Email sent",
		Priority:           "High",
	})
	assert.Equal(t, tracker.CreateIssueRequest{
		ProjectKey:  "PROJ",
		Summary:     "Reset",
		Description: "As a user...\n\nAcceptance Criteria:\nEmail sent\n\nPriority:\nHigh",
		IssueType:   "Story",
		EpicKey:     "PROJ-1",
	}, story)
}
