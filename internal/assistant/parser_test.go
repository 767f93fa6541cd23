package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prism/pkg/models"
)

const testCaseReply = `Here are some test cases for the login story.

**TEST CASES:**

**Test Case 1: Valid credentials**
- **Description:** Verify a registered user can sign in.
- **Steps:**
  1. Open the login page
  2. Enter valid credentials
  3. Click "Sign in"
- **Expected Result:** The dashboard is shown.

**Test Case 2: Wrong password**
- **Description:** Verify the error for a wrong password.
- **Steps:**
  - Enter a wrong password
- **Expected Result:**
  - An error message is shown
  - The user stays on the login page

### **Test Case 3:** Locked account
- **Description:** Verify locked accounts cannot sign in.

Would you like to export these to Jira?`

func TestParseTestCases(t *testing.T) {
	items := Parse(testCaseReply, models.KindTestCase)
	require.Len(t, items, 3)

	assert.Equal(t, models.ParsedItem{
		Title:          "Valid credentials",
		Description:    "Verify a registered user can sign in.",
		Steps:          "Open the login page\nEnter valid credentials\nClick \"Sign in\"",
		ExpectedResult: "The dashboard is shown.",
	}, items[0])

	assert.Equal(t, "Enter a wrong password", items[1].Steps)
	assert.Equal(t, "An error message is shown\nThe user stays on the login page", items[1].ExpectedResult)

	// trailing follow-up question is not part of the last item
	assert.Equal(t, "Locked account", items[2].Title)
	assert.Equal(t, "Verify locked accounts cannot sign in.", items[2].Description)
	assert.Equal(t, PlaceholderSteps, items[2].Steps)
	assert.Equal(t, PlaceholderExpectedResult, items[2].ExpectedResult)

	for _, item := range items {
		assert.Empty(t, item.AcceptanceCriteria)
		assert.Empty(t, item.Priority)
	}
}

func TestParseStories(t *testing.T) {
	reply := `**USER STORIES:**

**User Story 1: Password reset**
- **Description:** As a user, I want to reset my password so that I can regain access.
- **Acceptance Criteria:**
  - A reset link is emailed
  - The link expires after 1 hour
- **Priority:** High

**user story 2: Remember me**
- **Description:** As a user, I want to stay signed in.

Would you like me to export these to Jira?`

	items := Parse(reply, models.KindStory)
	require.Len(t, items, 2)

	assert.Equal(t, "Password reset", items[0].Title)
	assert.Equal(t, "A reset link is emailed\nThe link expires after 1 hour", items[0].AcceptanceCriteria)
	assert.Equal(t, "High", items[0].Priority)

	assert.Equal(t, "Remember me", items[1].Title)
	assert.Equal(t, PlaceholderAcceptanceCriteria, items[1].AcceptanceCriteria)
	assert.Equal(t, models.DefaultPriority, items[1].Priority)
	assert.Empty(t, items[1].Steps)
}

func TestParseSkipsItemsWithoutDescription(t *testing.T) {
	reply := `**Test Case 1: No description**
- **Steps:** Click it

**Test Case 2: Has description**
- **Description:** It works.`

	items := Parse(reply, models.KindTestCase)
	require.Len(t, items, 1)
	assert.Equal(t, "Has description", items[0].Title)
}

func TestParseUnstructuredText(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind models.ItemKind
	}{
		{name: "Empty", text: "", kind: models.KindTestCase},
		{name: "Prose", text: "I think the login page needs more work.", kind: models.KindTestCase},
		{name: "Stub reply", text: StubReply, kind: models.KindStory},
		{name: "Wrong kind", text: testCaseReply, kind: models.KindStory},
		{name: "Unknown kind", text: testCaseReply, kind: models.ItemKind("epic")},
		{name: "Heading only", text: "**TEST CASES:**\n\nNone yet.", kind: models.KindTestCase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := Parse(tt.text, tt.kind)
			assert.NotNil(t, items)
			assert.Empty(t, items)
		})
	}
}

func TestParseKeepsInlineLabelValues(t *testing.T) {
	reply := "**Test Case 1: Inline**\r\n**Description**: first line\r\ncontinued here\r\n- **Expected Result:** ok"

	items := Parse(reply, models.KindTestCase)
	require.Len(t, items, 1)
	assert.Equal(t, "first line\ncontinued here", items[0].Description)
	assert.Equal(t, "ok", items[0].ExpectedResult)
}
