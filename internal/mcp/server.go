// Package mcp serves the dashboard's analysis functions as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/hierarchy"
	"github.com/danielolaszy/prism/internal/snapshot"
	"github.com/danielolaszy/prism/pkg/models"
)

var errNoTracker = errors.New("jira credentials are not configured (JIRA_URL, JIRA_USERNAME, JIRA_TOKEN)")

// Tools holds the state the tool handlers share.
type Tools struct {
	cache *snapshot.Cache
}

// NewTools creates the tool set. loader may be nil, in which case tools that
// need Jira report an error.
func NewTools(loader snapshot.Loader) *Tools {
	t := &Tools{}
	if loader != nil {
		t.cache = snapshot.NewCache(loader)
	}
	return t
}

// NewServer registers every tool on a new MCP server.
func NewServer(version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer("prism", version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("classify_status",
		mcp.WithDescription("Classify a Jira workflow status as passing, partial, breaking or pending"),
		mcp.WithTitleAnnotation("Classify Status"),
		mcp.WithString("status",
			mcp.Description("Status name, e.g. \"Passed\" or \"In Progress\""),
			mcp.Required(),
		),
	), tools.handleClassifyStatus)

	s.AddTool(mcp.NewTool("parse_ai_response",
		mcp.WithDescription("Extract test cases or user stories from a language model reply"),
		mcp.WithTitleAnnotation("Parse AI Response"),
		mcp.WithString("text",
			mcp.Description("The model reply, heading formatted or JSON"),
			mcp.Required(),
		),
		mcp.WithString("kind",
			mcp.Description("test_case or story (default test_case)"),
		),
	), tools.handleParse)

	s.AddTool(mcp.NewTool("project_stats",
		mcp.WithDescription("Test case rollups for a Jira project, per epic and in total"),
		mcp.WithTitleAnnotation("Project Stats"),
		mcp.WithString("project_key",
			mcp.Description("Jira project key, e.g. PROJ"),
			mcp.Required(),
		),
	), tools.handleProjectStats)

	return s
}

func textResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(b)},
		},
	}, nil
}

func errResult(err error) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf("Error: %v", err)},
		},
	}, nil
}

func getString(req mcp.CallToolRequest, key string) string {
	v, ok := req.GetArguments()[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (t *Tools) handleClassifyStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := getString(req, "status")
	return textResult(map[string]string{
		"status": status,
		"bucket": string(hierarchy.Classify(status)),
	})
}

func (t *Tools) handleParse(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := getString(req, "text")
	if strings.TrimSpace(text) == "" {
		return errResult(fmt.Errorf("text is required"))
	}

	kind := models.ItemKind(getString(req, "kind"))
	if kind == "" {
		kind = models.KindTestCase
	}
	if !kind.Valid() {
		return errResult(fmt.Errorf("unknown kind %q", kind))
	}

	return textResult(map[string]any{
		"kind":  kind,
		"items": assistant.ParseJSON(text, kind),
	})
}

func (t *Tools) handleProjectStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := strings.ToUpper(strings.TrimSpace(getString(req, "project_key")))
	if key == "" {
		return errResult(fmt.Errorf("project_key is required"))
	}
	if t.cache == nil {
		return errResult(errNoTracker)
	}

	snap, err := t.cache.Get(ctx)
	if err != nil {
		return errResult(err)
	}
	if _, ok := snap.Project(key); !ok {
		return errResult(fmt.Errorf("project %s not found", key))
	}

	return textResult(snap.ProjectSummary(key))
}
