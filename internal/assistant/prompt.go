package assistant

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/prism/pkg/models"
)

// ExportQuestion closes every reply that offers items for export.
const ExportQuestion = "Would you like to export these to Jira?"

const generalPrompt = "You are a helpful assistant that can help with various software development tasks " +
	"including generating test cases, user stories, code reviews, and answering technical questions. " +
	"Provide clear, practical, and actionable responses."

const testCaseFormat = `When you propose test cases, start with the line **TEST CASES:** and write each one exactly like this:

**Test Case 1: <short title>**
- **Description:** <what the test verifies>
- **Steps:**
  1. <step>
  2. <step>
- **Expected Result:** <observable outcome>

After the last test case, ask: "` + ExportQuestion + `"`

const storyFormat = `When you propose user stories, start with the line **USER STORIES:** and write each one exactly like this:

**User Story 1: <short title>**
- **Description:** As a <persona>, I want <goal> so that <benefit>
- **Acceptance Criteria:**
  - <criterion>
  - <criterion>
- **Priority:** High, Medium or Low

After the last user story, ask: "` + ExportQuestion + `"`

const testCaseJSON = `Respond only with a JSON object of the form {"test_cases": [{"title": "", "description": "", "steps": ["..."], "expected_result": ""}]}.`

const storyJSON = `Respond only with a JSON object of the form {"stories": [{"title": "", "description": "", "acceptance_criteria": ["..."], "priority": "High|Medium|Low"}]}.`

// Focus is what the user has selected on the dashboard.
type Focus struct {
	StoryKey     string
	StorySummary string
	EpicKey      string
	EpicSummary  string
}

// SystemPrompt returns the chat system prompt for focus. A selected story
// steers towards test cases, a selected epic towards user stories.
func SystemPrompt(focus Focus) string {
	switch {
	case focus.StoryKey != "":
		return fmt.Sprintf("You are a QA assistant helping a team test Jira story %s: %q.\n\n%s",
			focus.StoryKey, focus.StorySummary, testCaseFormat)
	case focus.EpicKey != "":
		return fmt.Sprintf("You are a business analyst helping a team plan Jira epic %s: %q.\n\n%s",
			focus.EpicKey, focus.EpicSummary, storyFormat)
	default:
		return generalPrompt + "\n\n" + testCaseFormat + "\n\n" + storyFormat
	}
}

// GenerateMessages builds the prompt that drafts count items of kind for the
// issue summarized by summary.
func GenerateMessages(kind models.ItemKind, summary string, count int, jsonMode bool) []ChatMessage {
	if count <= 0 {
		count = defaultCount(kind)
	}

	var system, user string
	switch kind {
	case models.KindStory:
		system = "You are a business analyst writing user stories for a Jira epic."
		user = fmt.Sprintf("Generate %d user stories for epic: %q", count, summary)
		if jsonMode {
			system += " " + storyJSON
		} else {
			system += "\n\n" + storyFormat
		}
	default:
		system = "You are a QA assistant writing test cases for a Jira story."
		user = fmt.Sprintf("Generate %d test cases for: %q", count, summary)
		if jsonMode {
			system += " " + testCaseJSON
		} else {
			system += "\n\n" + testCaseFormat
		}
	}

	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// ChatMessages converts a conversation into prompt messages, prefixed by the
// system prompt for focus.
func ChatMessages(focus Focus, history []models.Message) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, ChatMessage{Role: "system", Content: SystemPrompt(focus)})
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleBot {
			role = "assistant"
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: m.Content})
	}
	return msgs
}

func defaultCount(kind models.ItemKind) int {
	if kind == models.KindStory {
		return 3
	}
	return 5
}
