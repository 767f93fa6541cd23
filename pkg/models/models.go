// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// IssueType is the normalized level of an issue in the project hierarchy.
type IssueType string

const (
	TypeProject  IssueType = "Project"
	TypeEpic     IssueType = "Epic"
	TypeStory    IssueType = "Story"
	TypeTask     IssueType = "Task"
	TypeBug      IssueType = "Bug"
	TypeTestCase IssueType = "TestCase"
)

// DefaultPriority is used when the tracker returns no priority.
const DefaultPriority = "Medium"

// Issue is a tracker issue in the uniform shape used by the rest of the
// application, regardless of the endpoint that produced it.
type Issue struct {
	// Key is the tracker identifier (e.g., "PROJ-123")
	Key string `json:"key"`

	// Summary is the issue's title
	Summary string `json:"summary"`

	// Type is the normalized hierarchy level
	Type IssueType `json:"issueType"`

	// IssueTypeName is the raw type name reported by the tracker (e.g., "Sub-task")
	IssueTypeName string `json:"issueTypeName"`

	ProjectKey  string `json:"projectKey"`
	ProjectName string `json:"projectName"`

	// ParentKey is the epic of a story or the story of a test case
	ParentKey string `json:"parentKey,omitempty"`

	// Status is the free-form workflow status name
	Status string `json:"status"`

	// Assignee is nil when the issue is unassigned
	Assignee *Assignee `json:"assignee,omitempty"`

	Priority Priority  `json:"priority"`
	Updated  time.Time `json:"updated"`
}

// Assignee is the display information of the user an issue is assigned to.
type Assignee struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// Priority is the name and icon of an issue's priority.
type Priority struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// TestCase is a child of exactly one story.
type TestCase struct {
	Key       string `json:"key"`
	Summary   string `json:"summary"`
	Status    string `json:"status"`
	ParentKey string `json:"parentKey"`
}

// Project is a tracker project as listed in the sidebar.
type Project struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Stats are the rollup counts for a set of test cases.
// Passing+Partial+Breaking+Pending always equals Total.
type Stats struct {
	Passing  int `json:"passing" yaml:"passing"`
	Partial  int `json:"partial" yaml:"partial"`
	Breaking int `json:"breaking" yaml:"breaking"`
	Pending  int `json:"pending" yaml:"pending"`
	Total    int `json:"total" yaml:"total"`
	PassRate int `json:"passRate" yaml:"passRate"`
}

// StoryNode is a story together with its test cases and their rollup.
type StoryNode struct {
	Story     Issue      `json:"story"`
	TestCases []TestCase `json:"testCases"`
	Stats     Stats      `json:"stats"`
}

// EpicWithStories is an epic, the stories linked to it and the sum of their stats.
type EpicWithStories struct {
	Epic    Issue       `json:"epic"`
	Stories []StoryNode `json:"stories"`
	Stats   Stats       `json:"stats"`
}

// ItemKind selects what the assistant drafts and the pipeline exports.
type ItemKind string

const (
	KindTestCase ItemKind = "test_case"
	KindStory    ItemKind = "story"
)

// Valid reports whether k is a known kind.
func (k ItemKind) Valid() bool {
	return k == KindTestCase || k == KindStory
}

// ParsedItem is a test case or user story draft extracted from model output.
// Steps and ExpectedResult are set for test cases, AcceptanceCriteria and
// Priority for stories.
type ParsedItem struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	Steps              string `json:"steps,omitempty"`
	ExpectedResult     string `json:"expected_result,omitempty"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty"`
	Priority           string `json:"priority,omitempty"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is a single entry of a chat conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	// Exported is set once the items offered in this message were exported
	Exported bool `json:"exported,omitempty"`
}
