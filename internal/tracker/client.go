// Package tracker wraps the Jira REST API behind the operations the dashboard
// needs and maps upstream failures onto a small error taxonomy.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/models"
	"github.com/danielolaszy/prism/pkg/telemetry"
)

// BulkJQL selects everything the dashboard renders in one query.
const BulkJQL = "(issuetype in (Epic, Story, Task, Bug, Sub-task) OR parent is not EMPTY) ORDER BY project, issuetype, summary"

// BulkFields are the fields requested for the bulk snapshot, without the
// instance-specific epic-link field.
var BulkFields = []string{
	"key", "summary", "issuetype", "project", "assignee",
	"priority", "updated", "parent", "status",
}

const (
	defaultReadAttempts  = 3
	defaultRetryInterval = 500 * time.Millisecond
)

// Client handles interactions with the JIRA API
type Client struct {
	client        *jira.Client
	normalizer    Normalizer
	epicLinkField string
	timeout       time.Duration
	pageSize      int

	readAttempts  uint
	retryInterval time.Duration
}

// User is the authenticated Jira account.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// CreateIssueRequest describes one issue to create.
type CreateIssueRequest struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string

	// ParentKey makes the new issue a sub-task of that issue
	ParentKey string

	// EpicKey links the new issue to an epic via the epic-link field
	EpicKey string
}

// NewClient creates a client for baseURL using httpClient for transport and
// authentication.
func NewClient(httpClient *http.Client, baseURL string, cfg config.TrackerConfig) (*Client, error) {
	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	pageSize := cfg.MaxResults
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		client:        client,
		normalizer:    Normalizer{EpicLinkField: cfg.EpicLinkField},
		epicLinkField: cfg.EpicLinkField,
		timeout:       cfg.Timeout,
		pageSize:      pageSize,
		readAttempts:  defaultReadAttempts,
		retryInterval: defaultRetryInterval,
	}, nil
}

// NewBasicAuthClient creates a client from the JIRA_URL, JIRA_USERNAME and
// JIRA_TOKEN credentials.
func NewBasicAuthClient(cfg *config.Config) (*Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Token,
	}

	logging.Debug("creating basic-auth jira client",
		"url", cfg.Jira.URL,
		"username", cfg.Jira.Username,
		"token", logging.MaskSensitive(cfg.Jira.Token))

	return NewClient(tp.Client(), cfg.Jira.URL, cfg.Tracker)
}

// NewOAuthClient creates a client for a cloud site using an OAuth token.
// The token is refreshed transparently when it carries a refresh token.
func NewOAuthClient(ctx context.Context, token *oauth2.Token, cloudID string, cfg *config.Config) (*Client, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &Error{Op: "connect", kind: ErrUnauthenticated}
	}
	if cloudID == "" {
		return nil, fmt.Errorf("cloud id is required")
	}

	httpClient := OAuthConfig(cfg.OAuth).Client(ctx, token)
	return NewClient(httpClient, cloudAPIBase+cloudID+"/", cfg.Tracker)
}

// Normalizer returns the normalizer configured for this instance.
func (c *Client) Normalizer() Normalizer {
	return c.normalizer
}

// ListProjects returns the projects visible to the caller.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	list, err := readWithRetry(ctx, c, "list_projects", func(ctx context.Context) (*jira.ProjectList, *jira.Response, error) {
		return c.client.Project.GetListWithContext(ctx)
	})
	if err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(*list))
	for _, p := range *list {
		projects = append(projects, models.Project{
			ID:        p.ID,
			Key:       p.Key,
			Name:      p.Name,
			AvatarURL: p.AvatarUrls.Four8X48,
		})
	}
	return projects, nil
}

// SearchAll runs jql and follows pagination until every match is fetched.
func (c *Client) SearchAll(ctx context.Context, jql string, fields []string) ([]jira.Issue, error) {
	var all []jira.Issue
	startAt := 0

	for {
		opts := &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: c.pageSize,
			Fields:     fields,
		}

		page, err := readWithRetry(ctx, c, "search", func(ctx context.Context) (searchPage, *jira.Response, error) {
			issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
			if err != nil {
				return searchPage{}, resp, err
			}
			return searchPage{issues: issues, total: resp.Total}, resp, nil
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.issues...)
		startAt += len(page.issues)

		logging.Debug("fetched search page",
			"start_at", startAt,
			"page_size", len(page.issues),
			"total", page.total)

		if len(page.issues) == 0 || startAt >= page.total {
			break
		}
	}

	return all, nil
}

type searchPage struct {
	issues []jira.Issue
	total  int
}

// BulkIssues fetches and normalizes every issue the dashboard renders.
// skipped counts the raw issues the normalizer dropped.
func (c *Client) BulkIssues(ctx context.Context) (issues []models.Issue, skipped int, err error) {
	fields := BulkFields
	if c.epicLinkField != "" {
		fields = append(append([]string{}, BulkFields...), c.epicLinkField)
	}

	raws, err := c.SearchAll(ctx, BulkJQL, fields)
	if err != nil {
		return nil, 0, err
	}

	issues, skipped = c.normalizer.NormalizeAll(raws)
	return issues, skipped, nil
}

// GetTestCases returns the test cases of a single story.
func (c *Client) GetTestCases(ctx context.Context, storyKey string) ([]models.TestCase, error) {
	opts := &jira.GetQueryOptions{Fields: "summary,status,subtasks"}
	story, err := readWithRetry(ctx, c, "get_test_cases", func(ctx context.Context) (*jira.Issue, *jira.Response, error) {
		return c.client.Issue.GetWithContext(ctx, storyKey, opts)
	})
	if err != nil {
		return nil, err
	}
	return NormalizeSubtasks(story), nil
}

// CreateIssue creates a single issue and returns its key. It is never retried.
func (c *Client) CreateIssue(ctx context.Context, r CreateIssueRequest) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "jira.create_issue")
	defer span.End()
	start := time.Now()

	fields := map[string]any{
		"project":     map[string]string{"key": r.ProjectKey},
		"summary":     r.Summary,
		"description": adfDocument(r.Description),
		"issuetype":   map[string]string{"name": r.IssueType},
	}
	if r.ParentKey != "" {
		fields["parent"] = map[string]string{"key": r.ParentKey}
	}
	if r.EpicKey != "" && c.epicLinkField != "" {
		fields[c.epicLinkField] = r.EpicKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.client.NewRequestWithContext(ctx, http.MethodPost, "rest/api/3/issue", map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("failed to build create request: %w", err)
	}

	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	resp, err := c.client.Do(req, &created)
	if err != nil {
		err = newError("create_issue", resp, err)
		telemetry.RecordTrackerRequest(ctx, "create_issue", Category(err), time.Since(start))
		return "", err
	}
	telemetry.RecordTrackerRequest(ctx, "create_issue", "", time.Since(start))

	if created.Key == "" {
		return "", statusError("create_issue", http.StatusBadGateway, "response carried no issue key")
	}

	logging.Info("created jira issue", "key", created.Key, "issue_type", r.IssueType, "project", r.ProjectKey)
	return created.Key, nil
}

// Myself returns the account the client is authenticated as.
func (c *Client) Myself(ctx context.Context) (User, error) {
	u, err := readWithRetry(ctx, c, "myself", func(ctx context.Context) (*jira.User, *jira.Response, error) {
		return c.client.User.GetSelfWithContext(ctx)
	})
	if err != nil {
		return User{}, err
	}
	return User{
		AccountID:   u.AccountID,
		DisplayName: u.DisplayName,
		Email:       u.EmailAddress,
		AvatarURL:   u.AvatarUrls.Four8X48,
	}, nil
}

// readWithRetry runs an idempotent read with a per-attempt timeout, retrying
// transient failures with exponential backoff.
func readWithRetry[T any](ctx context.Context, c *Client, op string, call func(context.Context) (T, *jira.Response, error)) (T, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "jira."+op)
	defer span.End()
	start := time.Now()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval

	attempt := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		v, resp, err := call(reqCtx)
		if err == nil {
			return v, nil
		}

		err = newError(op, resp, err)
		if !errors.Is(err, ErrTransient) {
			return v, backoff.Permanent(err)
		}
		logging.Warn("transient jira failure", "op", op, "attempt", attempt, "error", err)
		return v, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(c.readAttempts))

	if err != nil {
		var te *Error
		if !errors.As(err, &te) {
			// context cancellation surfaces from backoff unwrapped
			err = &Error{Op: op, kind: ErrTransient, err: err}
		}
		span.RecordError(err)
	}
	telemetry.RecordTrackerRequest(ctx, op, Category(err), time.Since(start))
	return v, err
}

// ProjectKeyOf returns the project part of an issue key ("PROJ-12" -> "PROJ").
func ProjectKeyOf(issueKey string) string {
	if i := strings.Index(issueKey, "-"); i > 0 {
		return issueKey[:i]
	}
	return issueKey
}
