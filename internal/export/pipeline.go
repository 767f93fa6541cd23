// Package export creates tracker issues from parsed test cases and user
// stories and reports the outcome of every item.
package export

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/tracker"
	"github.com/danielolaszy/prism/pkg/models"
	"github.com/danielolaszy/prism/pkg/telemetry"
)

var (
	// ErrNothingToExport is returned when no item can be exported.
	ErrNothingToExport = errors.New("no valid items found to export")

	// ErrInvalidRequest is returned for an unknown kind or malformed parent key.
	ErrInvalidRequest = errors.New("invalid export request")
)

// MessageNothingToExport is shown to the user for ErrNothingToExport.
const MessageNothingToExport = "No valid items found to export"

const (
	messageExported = "Successfully exported to Jira"
	messageFailed   = "Failed to export to Jira"
	storyIssueType  = "Story"
)

var issueKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-\d+$`)

// IssueCreator creates a single tracker issue.
type IssueCreator interface {
	CreateIssue(ctx context.Context, r tracker.CreateIssueRequest) (string, error)
}

// Invalidator is called after an export created at least one issue.
type Invalidator func()

// ItemResult is the outcome for one item.
type ItemResult struct {
	Item     string `json:"item"`
	Success  bool   `json:"success"`
	IssueKey string `json:"issueKey,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
	Details  string `json:"details,omitempty"`
	Message  string `json:"message"`
}

// Summary counts the results of a run.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Report is the outcome of a run. Success is true when any item succeeded.
type Report struct {
	Success bool         `json:"success"`
	Results []ItemResult `json:"results"`
	Summary Summary      `json:"summary"`
}

// Pipeline turns parsed items into tracker issues.
type Pipeline struct {
	creator      IssueCreator
	testCaseType string
	invalidate   Invalidator
}

// NewPipeline creates a pipeline. invalidate may be nil.
func NewPipeline(creator IssueCreator, cfg config.TrackerConfig, invalidate Invalidator) *Pipeline {
	testCaseType := cfg.TestCaseType
	if testCaseType == "" {
		testCaseType = "Sub-task"
	}
	return &Pipeline{
		creator:      creator,
		testCaseType: testCaseType,
		invalidate:   invalidate,
	}
}

// Run exports items under parentKey: test cases become sub-tasks of a story,
// stories are linked to an epic. Items are submitted one at a time and a
// failing item never stops the rest. Nothing is retried.
func (p *Pipeline) Run(ctx context.Context, kind models.ItemKind, parentKey string, items []models.ParsedItem) (Report, error) {
	if !kind.Valid() {
		return Report{}, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, kind)
	}
	parentKey = strings.TrimSpace(parentKey)
	if !issueKeyPattern.MatchString(parentKey) {
		return Report{}, fmt.Errorf("%w: parent key %q is not an issue key", ErrInvalidRequest, parentKey)
	}
	if !hasTitled(items) {
		return Report{}, ErrNothingToExport
	}

	ctx, span := telemetry.Tracer().Start(ctx, "export.run")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.KeyItemKind, string(kind)),
		attribute.Int("prism.export.items", len(items)),
	)

	logging.Info("starting export", "kind", kind, "parent_key", parentKey, "items", len(items))

	report := Report{Results: make([]ItemResult, 0, len(items))}
	for _, item := range items {
		result := p.exportOne(ctx, kind, parentKey, item)
		report.Results = append(report.Results, result)
		if result.Success {
			report.Summary.Successful++
		} else {
			report.Summary.Failed++
		}
	}
	report.Summary.Total = len(report.Results)
	report.Success = report.Summary.Successful > 0

	telemetry.RecordExport(ctx, string(kind), report.Summary.Successful, report.Summary.Failed)
	logging.Info("export finished",
		"kind", kind,
		"parent_key", parentKey,
		"successful", report.Summary.Successful,
		"failed", report.Summary.Failed)

	if report.Success && p.invalidate != nil {
		p.invalidate()
	}

	return report, nil
}

func (p *Pipeline) exportOne(ctx context.Context, kind models.ItemKind, parentKey string, item models.ParsedItem) ItemResult {
	title := strings.TrimSpace(item.Title)
	result := ItemResult{Item: title, Message: messageFailed}

	if title == "" {
		result.Error = "Item has no title"
		result.Code = "invalid_item"
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Error = "Export cancelled"
		result.Code = "cancelled"
		return result
	}

	key, err := p.creator.CreateIssue(ctx, p.BuildRequest(kind, parentKey, item))
	if err != nil {
		logging.Warn("failed to export item", "title", title, "parent_key", parentKey, "error", err)
		result.Error = tracker.UserMessage(err)
		result.Code = tracker.Category(err)
		result.Details = tracker.Detail(err)
		return result
	}

	result.Success = true
	result.IssueKey = key
	result.Message = messageExported
	return result
}

// BuildRequest maps one item onto a create-issue request.
func (p *Pipeline) BuildRequest(kind models.ItemKind, parentKey string, item models.ParsedItem) tracker.CreateIssueRequest {
	req := tracker.CreateIssueRequest{
		ProjectKey:  tracker.ProjectKeyOf(parentKey),
		Summary:     strings.TrimSpace(item.Title),
		Description: Description(kind, parentKey, item),
	}

	if kind == models.KindTestCase {
		req.IssueType = p.testCaseType
		req.ParentKey = parentKey
	} else {
		req.IssueType = storyIssueType
		req.EpicKey = parentKey
	}
	return req
}

// Description renders the plain-text issue description for item.
func Description(kind models.ItemKind, parentKey string, item models.ParsedItem) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(item.Description))

	section := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "\n\n%s:\n%s", label, strings.TrimSpace(value))
	}

	if kind == models.KindTestCase {
		fmt.Fprintf(&b, "\n\nRelated to: %s", parentKey)
		section("Steps", item.Steps)
		section("Expected Result", item.ExpectedResult)
	} else {
		section("Acceptance Criteria", item.AcceptanceCriteria)
		section("Priority", item.Priority)
	}

	return b.String()
}

func hasTitled(items []models.ParsedItem) bool {
	for _, item := range items {
		if strings.TrimSpace(item.Title) != "" {
			return true
		}
	}
	return false
}
