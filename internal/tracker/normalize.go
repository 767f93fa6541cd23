package tracker

import (
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/models"
)

// Normalizer converts raw tracker issues into models.Issue values.
type Normalizer struct {
	// EpicLinkField is the custom field that links a story to its epic on
	// instances where the story has no parent.
	EpicLinkField string
}

// Normalize converts a single raw issue. ok is false when the issue lacks a
// key or summary, or has a type that fits nowhere in the hierarchy.
func (n Normalizer) Normalize(raw jira.Issue) (models.Issue, bool) {
	if raw.Key == "" || raw.Fields == nil || raw.Fields.Summary == "" {
		logging.Warn("skipping malformed issue", "key", raw.Key, "id", raw.ID)
		return models.Issue{}, false
	}

	f := raw.Fields
	parentKey := ""
	if f.Parent != nil {
		parentKey = f.Parent.Key
	}

	issueType, ok := classifyType(f.Type.Name, parentKey)
	if !ok {
		logging.Debug("skipping issue of unsupported type", "key", raw.Key, "issue_type", f.Type.Name)
		return models.Issue{}, false
	}

	if issueType == models.TypeStory && parentKey == "" {
		parentKey = epicLink(f.Unknowns[n.EpicLinkField])
	}

	issue := models.Issue{
		Key:           raw.Key,
		Summary:       f.Summary,
		Type:          issueType,
		IssueTypeName: f.Type.Name,
		ProjectKey:    f.Project.Key,
		ProjectName:   f.Project.Name,
		ParentKey:     parentKey,
		Priority:      models.Priority{Name: models.DefaultPriority},
		Updated:       time.Time(f.Updated),
	}

	if f.Status != nil {
		issue.Status = f.Status.Name
	}
	if f.Assignee != nil {
		issue.Assignee = &models.Assignee{
			DisplayName: f.Assignee.DisplayName,
			AvatarURL:   f.Assignee.AvatarUrls.Two4X24,
		}
	}
	if f.Priority != nil && f.Priority.Name != "" {
		issue.Priority = models.Priority{Name: f.Priority.Name, IconURL: f.Priority.IconURL}
	}

	return issue, true
}

// NormalizeAll converts raws in order and reports how many were skipped.
func (n Normalizer) NormalizeAll(raws []jira.Issue) ([]models.Issue, int) {
	issues := make([]models.Issue, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		issue, ok := n.Normalize(raw)
		if !ok {
			skipped++
			continue
		}
		issues = append(issues, issue)
	}
	return issues, skipped
}

// NormalizeSubtasks extracts the test cases embedded in a story.
func NormalizeSubtasks(story *jira.Issue) []models.TestCase {
	if story == nil || story.Fields == nil {
		return []models.TestCase{}
	}

	cases := make([]models.TestCase, 0, len(story.Fields.Subtasks))
	for _, sub := range story.Fields.Subtasks {
		if sub == nil || sub.Key == "" || sub.Fields.Summary == "" {
			logging.Warn("skipping malformed subtask", "story", story.Key)
			continue
		}
		tc := models.TestCase{
			Key:       sub.Key,
			Summary:   sub.Fields.Summary,
			ParentKey: story.Key,
		}
		if sub.Fields.Status != nil {
			tc.Status = sub.Fields.Status.Name
		}
		cases = append(cases, tc)
	}
	return cases
}

// TestCaseFromIssue narrows a normalized test case issue.
func TestCaseFromIssue(issue models.Issue) models.TestCase {
	return models.TestCase{
		Key:       issue.Key,
		Summary:   issue.Summary,
		Status:    issue.Status,
		ParentKey: issue.ParentKey,
	}
}

func classifyType(name, parentKey string) (models.IssueType, bool) {
	switch name {
	case "Epic":
		return models.TypeEpic, true
	case "Story":
		return models.TypeStory, true
	case "Task":
		return models.TypeTask, true
	case "Bug":
		return models.TypeBug, true
	}
	// anything else hanging off a story is a test case
	if parentKey != "" {
		return models.TypeTestCase, true
	}
	return "", false
}

// epicLink reads the epic-link custom field, which instances report either
// as a bare key or as an object carrying one.
func epicLink(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if key, ok := v["key"].(string); ok {
			return key
		}
	}
	return ""
}
