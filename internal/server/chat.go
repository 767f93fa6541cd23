package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/export"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/models"
)

type chatRequest struct {
	Message  string `json:"message"`
	StoryKey string `json:"storyKey,omitempty"`
	EpicKey  string `json:"epicKey,omitempty"`
}

type chatResponse struct {
	Content string          `json:"content"`
	Message models.Message  `json:"message"`
	Export  *export.Report  `json:"export,omitempty"`
	Kind    models.ItemKind `json:"exportType,omitempty"`
}

// handleChat answers a chat message. A confirmation of an earlier export
// offer exports that offer's items instead of calling the model.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "Message is required")
		return
	}

	// resolved before the model call: the reply belongs to the conversation
	// it was asked in, whatever the user selects meanwhile
	key := assistant.ContextKey(req.StoryKey, req.EpicKey)

	decision := assistant.Detect(req.Message, sess.Chats.History(key))
	sess.Chats.Append(key, models.RoleUser, req.Message)

	if decision.ShouldExport {
		s.chatExport(w, r, sess, key, req, decision)
		return
	}

	focus := s.focus(sess, req)
	content, err := s.completer.Complete(r.Context(), assistant.CompletionRequest{
		Messages: assistant.ChatMessages(focus, sess.Chats.History(key)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	reply := sess.Chats.Append(key, models.RoleBot, content)
	jsonResponse(w, http.StatusOK, chatResponse{Content: content, Message: reply})
}

func (s *Server) chatExport(w http.ResponseWriter, r *http.Request, sess *Session, key string, req chatRequest, decision assistant.Decision) {
	parentKey, parent := req.StoryKey, "a story"
	if decision.Kind == models.KindStory {
		parentKey, parent = req.EpicKey, "an epic"
	}

	var (
		content string
		report  *export.Report
	)

	if parentKey == "" {
		content = fmt.Sprintf("Select %s first so I know where to export these items.", parent)
	} else {
		items := assistant.ParseJSON(decision.Content, decision.Kind)
		rep, err := s.pipeline(sess).Run(r.Context(), decision.Kind, parentKey, items)
		switch {
		case errors.Is(err, export.ErrNothingToExport):
			content = export.MessageNothingToExport
		case err != nil:
			writeError(w, r, err)
			return
		default:
			report = &rep
			if rep.Success {
				sess.Chats.MarkExported(key, decision.SourceMessageID)
			}
			content = exportSummary(decision.Kind, parentKey, rep)
		}
	}

	logging.Info("chat export handled", "context", key, "kind", decision.Kind, "parent_key", parentKey, "exported", report != nil && report.Success)

	reply := sess.Chats.Append(key, models.RoleBot, content)
	jsonResponse(w, http.StatusOK, chatResponse{
		Content: content,
		Message: reply,
		Export:  report,
		Kind:    decision.Kind,
	})
}

// focus describes the selection of req using the cached snapshot.
func (s *Server) focus(sess *Session, req chatRequest) assistant.Focus {
	f := assistant.Focus{StoryKey: req.StoryKey, EpicKey: req.EpicKey}
	snap := sess.Cache.Current()
	if snap == nil {
		return f
	}
	if issue, ok := snap.Issue(req.StoryKey); ok {
		f.StorySummary = issue.Summary
	}
	if issue, ok := snap.Issue(req.EpicKey); ok {
		f.EpicSummary = issue.Summary
	}
	return f
}

func exportSummary(kind models.ItemKind, parentKey string, rep export.Report) string {
	noun := "test cases"
	if kind == models.KindStory {
		noun = "user stories"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Exported %d of %d %s to %s.", rep.Summary.Successful, rep.Summary.Total, noun, parentKey)

	var created []string
	for _, res := range rep.Results {
		if res.Success {
			created = append(created, res.IssueKey)
		}
	}
	if len(created) > 0 {
		fmt.Fprintf(&b, " Created: %s.", strings.Join(created, ", "))
	}
	for _, res := range rep.Results {
		if !res.Success {
			fmt.Fprintf(&b, "\n- %s: %s", res.Item, res.Error)
		}
	}
	return b.String()
}
