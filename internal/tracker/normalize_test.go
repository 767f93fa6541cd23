package tracker

import (
	"encoding/json"
	"testing"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prism/pkg/models"
)

func rawIssue(t *testing.T, body string) jira.Issue {
	t.Helper()
	var issue jira.Issue
	require.NoError(t, json.Unmarshal([]byte(body), &issue))
	return issue
}

func TestNormalize(t *testing.T) {
	n := Normalizer{EpicLinkField: "customfield_10014"}

	tests := []struct {
		name   string
		body   string
		wantOK bool
		check  func(t *testing.T, issue models.Issue)
	}{
		{
			name: "Story linked through parent",
			body: `{"key":"PROJ-2","fields":{
				"summary":"Login form",
				"issuetype":{"name":"Story"},
				"project":{"key":"PROJ","name":"Project"},
				"parent":{"key":"PROJ-1"},
				"status":{"name":"In Progress"},
				"assignee":{"displayName":"Ada","avatarUrls":{"24x24":"https://avatar/ada"}},
				"priority":{"name":"High","iconUrl":"https://icon/high"},
				"updated":"2024-03-01T10:00:00.000+0000"}}`,
			wantOK: true,
			check: func(t *testing.T, issue models.Issue) {
				assert.Equal(t, "PROJ-2", issue.Key)
				assert.Equal(t, models.TypeStory, issue.Type)
				assert.Equal(t, "PROJ-1", issue.ParentKey)
				assert.Equal(t, "PROJ", issue.ProjectKey)
				assert.Equal(t, "Project", issue.ProjectName)
				assert.Equal(t, "In Progress", issue.Status)
				require.NotNil(t, issue.Assignee)
				assert.Equal(t, "Ada", issue.Assignee.DisplayName)
				assert.Equal(t, "https://avatar/ada", issue.Assignee.AvatarURL)
				assert.Equal(t, models.Priority{Name: "High", IconURL: "https://icon/high"}, issue.Priority)
				assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), issue.Updated.UTC())
			},
		},
		{
			name: "Story linked through epic field string",
			body: `{"key":"PROJ-3","fields":{
				"summary":"Logout",
				"issuetype":{"name":"Story"},
				"project":{"key":"PROJ"},
				"customfield_10014":"PROJ-1"}}`,
			wantOK: true,
			check: func(t *testing.T, issue models.Issue) {
				assert.Equal(t, "PROJ-1", issue.ParentKey)
				assert.Nil(t, issue.Assignee)
				assert.Equal(t, models.DefaultPriority, issue.Priority.Name)
			},
		},
		{
			name: "Story linked through epic field object",
			body: `{"key":"PROJ-4","fields":{
				"summary":"Reset password",
				"issuetype":{"name":"Story"},
				"project":{"key":"PROJ"},
				"customfield_10014":{"key":"PROJ-9"}}}`,
			wantOK: true,
			check: func(t *testing.T, issue models.Issue) {
				assert.Equal(t, "PROJ-9", issue.ParentKey)
			},
		},
		{
			name: "Sub-task becomes test case",
			body: `{"key":"PROJ-5","fields":{
				"summary":"Valid credentials",
				"issuetype":{"name":"Sub-task"},
				"project":{"key":"PROJ"},
				"parent":{"key":"PROJ-2"},
				"status":{"name":"Done"}}}`,
			wantOK: true,
			check: func(t *testing.T, issue models.Issue) {
				assert.Equal(t, models.TypeTestCase, issue.Type)
				assert.Equal(t, "Sub-task", issue.IssueTypeName)
				assert.Equal(t, "PROJ-2", issue.ParentKey)
			},
		},
		{
			name: "Epic",
			body: `{"key":"PROJ-1","fields":{"summary":"Auth","issuetype":{"name":"Epic"},"project":{"key":"PROJ"}}}`,
			wantOK: true,
			check: func(t *testing.T, issue models.Issue) {
				assert.Equal(t, models.TypeEpic, issue.Type)
				assert.Empty(t, issue.ParentKey)
			},
		},
		{
			name:   "Missing summary is skipped",
			body:   `{"key":"PROJ-6","fields":{"issuetype":{"name":"Task"},"project":{"key":"PROJ"}}}`,
			wantOK: false,
		},
		{
			name:   "Missing key is skipped",
			body:   `{"fields":{"summary":"Orphan","issuetype":{"name":"Task"}}}`,
			wantOK: false,
		},
		{
			name:   "Unknown type without parent is skipped",
			body:   `{"key":"PROJ-7","fields":{"summary":"Idea","issuetype":{"name":"Initiative"},"project":{"key":"PROJ"}}}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue, ok := n.Normalize(rawIssue(t, tt.body))
			assert.Equal(t, tt.wantOK, ok)
			if tt.check != nil {
				tt.check(t, issue)
			}
		})
	}
}

func TestNormalizeAllCountsSkipped(t *testing.T) {
	n := Normalizer{EpicLinkField: "customfield_10014"}
	raws := []jira.Issue{
		rawIssue(t, `{"key":"PROJ-1","fields":{"summary":"Auth","issuetype":{"name":"Epic"}}}`),
		rawIssue(t, `{"key":"PROJ-2","fields":{"issuetype":{"name":"Story"}}}`),
		rawIssue(t, `{"key":"PROJ-3","fields":{"summary":"Fix","issuetype":{"name":"Bug"}}}`),
	}

	issues, skipped := n.NormalizeAll(raws)
	assert.Equal(t, 1, skipped)
	require.Len(t, issues, 2)
	assert.Equal(t, "PROJ-1", issues[0].Key)
	assert.Equal(t, "PROJ-3", issues[1].Key)
}

func TestNormalizeSubtasks(t *testing.T) {
	story := rawIssue(t, `{"key":"PROJ-2","fields":{
		"summary":"Login form",
		"subtasks":[
			{"key":"PROJ-10","fields":{"summary":"Happy path","status":{"name":"Passed"}}},
			{"key":"PROJ-11","fields":{"summary":""}},
			{"key":"PROJ-12","fields":{"summary":"Lockout"}}
		]}}`)

	cases := NormalizeSubtasks(&story)
	require.Len(t, cases, 2)
	assert.Equal(t, models.TestCase{Key: "PROJ-10", Summary: "Happy path", Status: "Passed", ParentKey: "PROJ-2"}, cases[0])
	assert.Equal(t, "", cases[1].Status)

	assert.Empty(t, NormalizeSubtasks(nil))
}
