package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/firstfix/internal/state"
)

// ListProcessedParams are the inputs of list_processed_issues.
type ListProcessedParams struct {
	Outcome string `json:"outcome,omitempty" jsonschema:"Only return records with this outcome: pr_opened, dry_run, skipped or failed"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of records to return (default 50)"`
}

// CheckProcessedParams are the inputs of check_issue_processed.
type CheckProcessedParams struct {
	URL string `json:"url" jsonschema:"Issue URL, for example https://github.com/owner/repo/issues/1"`
}

type issueTools struct {
	stateFile string
}

// The log is reopened on every call so results follow a running bot.
func (t *issueTools) load() (*state.ProcessedIssues, error) {
	return state.Open(t.stateFile)
}

// ListProcessed handles list_processed_issues.
func (t *issueTools) ListProcessed(ctx context.Context, req *mcp.CallToolRequest, params ListProcessedParams) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP Issue Server] list_processed_issues outcome=%q limit=%d", params.Outcome, params.Limit)

	processed, err := t.load()
	if err != nil {
		return errorResult(err), nil, nil
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	outcome := state.Outcome(strings.TrimSpace(params.Outcome))

	all := processed.List()
	records := make([]state.Record, 0, limit)
	for i := len(all) - 1; i >= 0 && len(records) < limit; i-- {
		if outcome != "" && all[i].Outcome != outcome {
			continue
		}
		records = append(records, all[i])
	}

	return jsonResult(map[string]any{
		"total":   len(all),
		"count":   len(records),
		"records": records,
	})
}

// CheckProcessed handles check_issue_processed.
func (t *issueTools) CheckProcessed(ctx context.Context, req *mcp.CallToolRequest, params CheckProcessedParams) (*mcp.CallToolResult, any, error) {
	url := strings.TrimSpace(params.URL)
	if url == "" {
		return nil, nil, fmt.Errorf("url parameter is required")
	}
	log.Printf("[MCP Issue Server] check_issue_processed %s", url)

	processed, err := t.load()
	if err != nil {
		return errorResult(err), nil, nil
	}

	rec, ok := processed.Get(url)
	out := map[string]any{"url": url, "processed": ok}
	if ok {
		out["record"] = rec
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(err error) *mcp.CallToolResult {
	log.Printf("[MCP Issue Server] Error: %v", err)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
		IsError: true,
	}
}
