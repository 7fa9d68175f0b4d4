package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameSearch      = "cortex_search"
	ToolNameGitSearch   = "cortex_git_search"
	ToolNameExplain     = "cortex_explain"
	ToolNameAssess      = "cortex_assess"
	ToolNameFileProfile = "cortex_file_profile"
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyQuery = errors.New("query parameter is required and must not be empty")
	ErrEmptyPath  = errors.New("path parameter is required and must not be empty")
	ErrNoFiles    = errors.New("files parameter must contain at least one path")
)

// SearchInput is the input schema for the cortex_search tool.
type SearchInput struct {
	Query    string `json:"query"               jsonschema:"natural-language or code-shaped search text"`
	Filter   string `json:"filter,omitempty"    jsonschema:"restrict results to file paths starting with this prefix"`
	RepoPath string `json:"repo_path,omitempty" jsonschema:"repository path; defaults to CORTEX_RECALL_REPO or the working directory"`
	Limit    int    `json:"limit,omitempty"     jsonschema:"maximum number of results (default 10)"`
}

// GitSearchInput is the input schema for the cortex_git_search tool.
type GitSearchInput struct {
	Query         string `json:"query"                    jsonschema:"free-text commit-history question"`
	After         string `json:"after,omitempty"          jsonschema:"ISO date lower bound on commit date"`
	Before        string `json:"before,omitempty"         jsonschema:"ISO date upper bound on commit date"`
	Author        string `json:"author,omitempty"         jsonschema:"restrict to commits by this author"`
	File          string `json:"file,omitempty"           jsonschema:"restrict to commits touching this file path prefix"`
	Type          string `json:"type,omitempty"           jsonschema:"restrict to this conventional-commit type (feat, fix, ...)"`
	Sort          string `json:"sort,omitempty"           jsonschema:"result ordering hint (relevance or date)"`
	RepoPath      string `json:"repo_path,omitempty"      jsonschema:"repository path; defaults to CORTEX_RECALL_REPO or the working directory"`
	Limit         int    `json:"limit,omitempty"          jsonschema:"maximum number of results (default 10)"`
	UniqueCommits bool   `json:"unique_commits,omitempty" jsonschema:"collapse multiple chunks from the same commit"`
}

// ExplainInput is the input schema for the cortex_explain tool.
type ExplainInput struct {
	Query    string `json:"query"               jsonschema:"question to answer with combined code and history evidence"`
	RepoPath string `json:"repo_path,omitempty" jsonschema:"repository path; defaults to CORTEX_RECALL_REPO or the working directory"`
}

// AssessInput is the input schema for the cortex_assess tool.
type AssessInput struct {
	ChangeType string   `json:"change_type,omitempty" jsonschema:"kind of change being proposed (e.g. refactor, feat, fix)"`
	Query      string   `json:"query,omitempty"       jsonschema:"optional free-text description of the change"`
	RepoPath   string   `json:"repo_path,omitempty"   jsonschema:"repository path; defaults to CORTEX_RECALL_REPO or the working directory"`
	Files      []string `json:"files"                 jsonschema:"file paths the proposed change touches"`
}

// FileProfileInput is the input schema for the cortex_file_profile tool.
type FileProfileInput struct {
	Path     string `json:"path"                jsonschema:"file path to profile"`
	RepoPath string `json:"repo_path,omitempty" jsonschema:"repository path; defaults to CORTEX_RECALL_REPO or the working directory"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
