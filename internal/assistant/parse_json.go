package assistant

import (
	"encoding/json"
	"strings"

	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/models"
)

// jsonItem accepts the field spellings models tend to produce. List-valued
// fields may be a string or an array of strings.
type jsonItem struct {
	Title              string     `json:"title"`
	Summary            string     `json:"summary"`
	Description        flexString `json:"description"`
	Steps              flexString `json:"steps"`
	ExpectedResult     flexString `json:"expected_result"`
	ExpectedResultAlt  flexString `json:"expectedResult"`
	AcceptanceCriteria flexString `json:"acceptance_criteria"`
	AcceptanceAlt      flexString `json:"acceptanceCriteria"`
	Priority           string     `json:"priority"`
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = flexString(strings.Join(list, "\n"))
	return nil
}

var listKeys = []string{"items", "test_cases", "testCases", "stories", "user_stories", "userStories"}

// ParseJSON extracts items from a JSON reply, either a bare array or an object
// holding the array under a known key. Replies that are not such JSON are
// handed to Parse.
func ParseJSON(text string, kind models.ItemKind) []models.ParsedItem {
	raw := stripFences(text)

	list, ok := jsonList(raw)
	if !ok {
		logging.Debug("model reply is not item json, using heading parser", "kind", kind)
		return Parse(text, kind)
	}

	items := []models.ParsedItem{}
	for _, entry := range list {
		var ji jsonItem
		if err := json.Unmarshal(entry, &ji); err != nil {
			logging.Debug("skipping malformed json item", "error", err)
			continue
		}
		if item, ok := ji.toItem(kind); ok {
			items = append(items, item)
		}
	}
	return items
}

func jsonList(raw string) ([]json.RawMessage, bool) {
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	for _, key := range listKeys {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, &list); err == nil {
				return list, true
			}
		}
	}
	return nil, false
}

func (ji jsonItem) toItem(kind models.ItemKind) (models.ParsedItem, bool) {
	item := models.ParsedItem{
		Title:       strings.TrimSpace(ji.Title),
		Description: strings.TrimSpace(string(ji.Description)),
	}
	if item.Title == "" {
		item.Title = strings.TrimSpace(ji.Summary)
	}
	if item.Title == "" || item.Description == "" {
		return models.ParsedItem{}, false
	}

	switch kind {
	case models.KindTestCase:
		expected := string(ji.ExpectedResult)
		if expected == "" {
			expected = string(ji.ExpectedResultAlt)
		}
		item.Steps = orDefault(string(ji.Steps), PlaceholderSteps)
		item.ExpectedResult = orDefault(expected, PlaceholderExpectedResult)
	case models.KindStory:
		criteria := string(ji.AcceptanceCriteria)
		if criteria == "" {
			criteria = string(ji.AcceptanceAlt)
		}
		item.AcceptanceCriteria = orDefault(criteria, PlaceholderAcceptanceCriteria)
		item.Priority = orDefault(ji.Priority, models.DefaultPriority)
	}
	return item, true
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
