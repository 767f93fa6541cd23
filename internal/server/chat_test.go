package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/export"
	"github.com/danielolaszy/prism/pkg/models"
)

func TestChatExportsConfirmedOffer(t *testing.T) {
	env := newTestEnv(t)
	sess, cookie := env.signIn(t)
	env.completer.reply = func(assistant.CompletionRequest) (string, error) {
		return generatedReply, nil
	}

	rec := env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "Write test cases", StoryKey: "PROJ-2"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	offer := decode[chatResponse](t, rec)
	assert.Equal(t, generatedReply, offer.Content)
	assert.Nil(t, offer.Export)

	rec = env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "Yes, please!", StoryKey: "PROJ-2"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[chatResponse](t, rec)
	require.NotNil(t, resp.Export)
	assert.Equal(t, models.KindTestCase, resp.Kind)
	assert.Equal(t, export.Summary{Total: 2, Successful: 2}, resp.Export.Summary)
	assert.Equal(t, "Exported 2 of 2 test cases to PROJ-2. Created: PROJ-10, PROJ-20.", resp.Content)
	assert.Equal(t, 1, env.completer.calls(), "a confirmation never reaches the model")

	created := env.tracker.createdRequests()
	require.Len(t, created, 2)
	assert.Equal(t, "Valid login", created[0].Summary)
	assert.Equal(t, "PROJ-2", created[1].ParentKey)

	history := sess.Chats.History("story:PROJ-2")
	require.Len(t, history, 4)
	assert.True(t, history[1].Exported)

	// the offer was used up, so another yes is just chat
	rec = env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "yes", StoryKey: "PROJ-2"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[chatResponse](t, rec).Export)
	assert.Equal(t, 2, env.completer.calls())
	assert.Len(t, env.tracker.createdRequests(), 2)
}

func TestChatStoryExportNeedsEpic(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.signIn(t)
	env.completer.reply = func(assistant.CompletionRequest) (string, error) {
		return "**User Story 1: Reset password**\n- **Description:** As a user I want to reset my password.\n\nWould you like me to export these to Jira?", nil
	}

	env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "Draft stories"}, cookie)
	rec := env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "ok"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[chatResponse](t, rec)
	assert.Equal(t, models.KindStory, resp.Kind)
	assert.Nil(t, resp.Export)
	assert.Contains(t, resp.Content, "an epic")
	assert.Empty(t, env.tracker.createdRequests())
}

func TestChatUsesSelectionInPrompt(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.signIn(t)
	env.do(t, http.MethodGet, "/api/projects", nil, cookie)

	rec := env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "What should I test?", StoryKey: "PROJ-2"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", decode[chatResponse](t, rec).Content)

	require.Equal(t, 1, env.completer.calls())
	prompt := env.completer.prompts[0]
	assert.Equal(t, "system", prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "Sign in with email")
	assert.Equal(t, "What should I test?", prompt[len(prompt)-1].Content)
}

func TestChatReplyStaysInOriginalConversation(t *testing.T) {
	env := newTestEnv(t)
	sess, cookie := env.signIn(t)

	release := make(chan struct{})
	env.completer.reply = func(req assistant.CompletionRequest) (string, error) {
		last := req.Messages[len(req.Messages)-1].Content
		if last == "slow question" {
			<-release
		}
		return "answer to " + last, nil
	}

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "slow question", StoryKey: "PROJ-2"}, cookie)
	}()
	require.Eventually(t, func() bool { return env.completer.calls() == 1 }, time.Second, time.Millisecond)

	// the user moved on to the epic while the story question is pending
	rec := env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "quick question", EpicKey: "PROJ-1"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	close(release)
	require.Equal(t, http.StatusOK, (<-done).Code)

	story := sess.Chats.History("story:PROJ-2")
	require.Len(t, story, 2)
	assert.Equal(t, "answer to slow question", story[1].Content)

	epic := sess.Chats.History("epic:PROJ-1")
	require.Len(t, epic, 2)
	assert.Equal(t, "answer to quick question", epic[1].Content)
}

func TestChatValidationAndModelFailure(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "  "}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.completer.reply = func(assistant.CompletionRequest) (string, error) {
		return "", assistant.ErrModelUnavailable
	}
	rec = env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hi"}, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "model_unavailable", decode[errorBody](t, rec).Code)
}

func TestExportSummaryListsFailures(t *testing.T) {
	got := exportSummary(models.KindStory, "PROJ-1", export.Report{
		Success: true,
		Summary: export.Summary{Total: 2, Successful: 1, Failed: 1},
		Results: []export.ItemResult{
			{Item: "A", Success: true, IssueKey: "PROJ-7"},
			{Item: "B", Error: "Jira rejected the request."},
		},
	})
	assert.Equal(t, "Exported 1 of 2 user stories to PROJ-1. Created: PROJ-7.\n- B: Jira rejected the request.", got)
}
