// Package assistant turns language-model output into exportable test cases
// and user stories, and manages the chat conversations that produce them.
package assistant

import (
	"regexp"
	"strings"

	"github.com/danielolaszy/prism/pkg/models"
)

// Placeholders for fields the model left out.
const (
	PlaceholderSteps              = "Steps to be defined"
	PlaceholderExpectedResult     = "Expected result to be defined"
	PlaceholderAcceptanceCriteria = "Acceptance criteria to be defined"
)

type section int

const (
	sectionNone section = iota
	sectionDescription
	sectionSteps
	sectionExpected
	sectionCriteria
	sectionPriority
)

var (
	// **Test Case 1: Title**, **Test Case 1:** Title, ### **User Story 2: Title**
	introducers = map[models.ItemKind]*regexp.Regexp{
		models.KindTestCase: regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?\*\*Test[ \t]+Case[ \t]*\d*[ \t]*:[ \t]*([^*\n]*?)[ \t]*\*\*[ \t]*(.*)$`),
		models.KindStory:    regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?\*\*User[ \t]+Story[ \t]*\d*[ \t]*:[ \t]*([^*\n]*?)[ \t]*\*\*[ \t]*(.*)$`),
	}

	// - **Description:** text, **Steps**: text
	labelPattern = regexp.MustCompile(`(?i)^[ \t]*(?:[-*•][ \t]*)?\*\*(description|steps|expected results?|acceptance criteria|priority)[ \t]*:?[ \t]*\*\*[ \t]*:?[ \t]*(.*)$`)

	bulletPattern  = regexp.MustCompile(`^[ \t]*(?:[-*•]|\d+[.)])[ \t]+`)
	headingPattern = regexp.MustCompile(`^[ \t]*(?:#{1,6}[ \t]*)?\*\*[^*]+\*\*[ \t]*:?[ \t]*$`)
	rulePattern    = regexp.MustCompile(`^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
)

var labelSections = map[string]section{
	"description":         sectionDescription,
	"steps":               sectionSteps,
	"expected result":     sectionExpected,
	"expected results":    sectionExpected,
	"acceptance criteria": sectionCriteria,
	"priority":            sectionPriority,
}

// Parse extracts items of kind from a semi-structured model reply. Text that
// does not follow the heading convention yields an empty slice.
func Parse(text string, kind models.ItemKind) []models.ParsedItem {
	items := []models.ParsedItem{}

	re, ok := introducers[kind]
	if !ok {
		return items
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	matches := re.FindAllStringSubmatchIndex(text, -1)

	for i, m := range matches {
		title := strings.TrimSpace(text[m[2]:m[3]])
		if title == "" {
			title = strings.TrimSpace(text[m[4]:m[5]])
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		item, ok := parseBlock(title, text[m[1]:end], kind)
		if ok {
			items = append(items, item)
		}
	}

	return items
}

func parseBlock(title, body string, kind models.ItemKind) (models.ParsedItem, bool) {
	fields := map[section][]string{}
	current := sectionNone

	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := labelPattern.FindStringSubmatch(line); m != nil {
			current = labelSections[strings.ToLower(m[1])]
			if v := cleanLine(m[2]); v != "" {
				fields[current] = append(fields[current], v)
			}
			continue
		}

		if headingPattern.MatchString(line) || rulePattern.MatchString(line) || followUpPattern.MatchString(line) {
			continue
		}
		if current == sectionNone {
			continue
		}

		if v := cleanLine(line); v != "" {
			fields[current] = append(fields[current], v)
		}
	}

	item := models.ParsedItem{
		Title:       title,
		Description: strings.Join(fields[sectionDescription], "\n"),
	}
	if item.Title == "" || item.Description == "" {
		return models.ParsedItem{}, false
	}

	switch kind {
	case models.KindTestCase:
		item.Steps = orDefault(strings.Join(fields[sectionSteps], "\n"), PlaceholderSteps)
		item.ExpectedResult = orDefault(strings.Join(fields[sectionExpected], "\n"), PlaceholderExpectedResult)
	case models.KindStory:
		item.AcceptanceCriteria = orDefault(strings.Join(fields[sectionCriteria], "\n"), PlaceholderAcceptanceCriteria)
		item.Priority = orDefault(strings.Join(fields[sectionPriority], " "), models.DefaultPriority)
	}

	return item, true
}

func cleanLine(line string) string {
	line = bulletPattern.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func orDefault(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}
