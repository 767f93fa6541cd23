package assistant

import (
	"regexp"
	"strings"

	"github.com/danielolaszy/prism/pkg/models"
)

// affirmativePatterns match the whole normalized reply.
var affirmativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(yes|y|yep|yeah|yup)(,? please)?$`),
	regexp.MustCompile(`^(ok|okay|sure)$`),
	regexp.MustCompile(`^(go ahead|do it|please do)$`),
	regexp.MustCompile(`^(confirm|confirmed|proceed)$`),
	regexp.MustCompile(`^(yes,? )?(please )?export (them|it|these)( to jira)?$`),
	regexp.MustCompile(`^(sounds good|absolutely|definitely)$`),
	regexp.MustCompile(`^(👍|✅)+$`),
}

var (
	trailingPunct   = regexp.MustCompile(`[\s.!]+$`)
	followUpPattern = regexp.MustCompile(`(?i)would you like (me )?to export|shall i export|export (these|them) to jira`)
)

// Decision is the outcome of confirmation detection.
type Decision struct {
	ShouldExport bool            `json:"shouldExport"`
	Kind         models.ItemKind `json:"exportType,omitempty"`

	// SourceMessageID and Content identify the bot message whose items are exported
	SourceMessageID string `json:"sourceMessageId,omitempty"`
	Content         string `json:"-"`
}

// IsAffirmative reports whether msg is a short confirmation.
func IsAffirmative(msg string) bool {
	s := strings.ToLower(strings.TrimSpace(msg))
	s = trailingPunct.ReplaceAllString(s, "")
	if s == "" {
		return false
	}
	for _, re := range affirmativePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Detect decides whether msg confirms an export offered earlier in history.
// The newest bot message carrying both an export offer and item markers is the
// source; messages already exported are never offered again.
func Detect(msg string, history []models.Message) Decision {
	if !IsAffirmative(msg) {
		return Decision{}
	}

	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role != models.RoleBot || m.Exported {
			continue
		}
		if !followUpPattern.MatchString(m.Content) {
			continue
		}
		kind, ok := contentKind(m.Content)
		if !ok {
			continue
		}
		return Decision{
			ShouldExport:    true,
			Kind:            kind,
			SourceMessageID: m.ID,
			Content:         m.Content,
		}
	}

	return Decision{}
}

// contentKind finds the earliest exportable marker in content.
func contentKind(content string) (models.ItemKind, bool) {
	lower := strings.ToLower(content)
	tc := strings.Index(lower, "**test case")
	us := strings.Index(lower, "**user stor")

	switch {
	case tc < 0 && us < 0:
		return "", false
	case us < 0 || (tc >= 0 && tc < us):
		return models.KindTestCase, true
	default:
		return models.KindStory, true
	}
}
