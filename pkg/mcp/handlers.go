package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/cortex"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
)

// gitSearchOutput reports which classifier strategy routed a git_search
// query alongside its ranked results, so a caller can tell a targeted
// blame/pickaxe match from a generic vector fallback.
type gitSearchOutput struct {
	Strategy string                `json:"strategy"`
	Results  []store.ScoredHistory `json:"results"`
}

// handleSearch processes cortex_search tool calls.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input SearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Query == "" {
		return errorResult(ErrEmptyQuery)
	}

	results, err := s.cortex.Search(ctx, input.Query, input.Limit, input.Filter)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(results)
}

// handleGitSearch processes cortex_git_search tool calls.
func (s *Server) handleGitSearch(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input GitSearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Query == "" {
		return errorResult(ErrEmptyQuery)
	}

	opts := cortex.GitSearchOptions{
		After:         input.After,
		Before:        input.Before,
		Author:        input.Author,
		File:          input.File,
		Type:          input.Type,
		Limit:         input.Limit,
		Sort:          input.Sort,
		UniqueCommits: input.UniqueCommits,
	}

	results, classification, err := s.cortex.GitSearch(ctx, input.Query, opts, time.Now())
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(gitSearchOutput{Strategy: string(classification.Strategy), Results: results})
}

// handleExplain processes cortex_explain tool calls.
func (s *Server) handleExplain(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ExplainInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Query == "" {
		return errorResult(ErrEmptyQuery)
	}

	result, err := s.cortex.Explain(ctx, input.Query, time.Now())
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// handleAssess processes cortex_assess tool calls.
func (s *Server) handleAssess(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input AssessInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if len(input.Files) == 0 {
		return errorResult(ErrNoFiles)
	}

	warnings := s.cortex.Assess(input.Files, input.ChangeType)

	return jsonResult(warnings)
}

// handleFileProfile processes cortex_file_profile tool calls.
func (s *Server) handleFileProfile(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input FileProfileInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Path == "" {
		return errorResult(ErrEmptyPath)
	}

	profile, ok := s.cortex.FileProfile(input.Path)
	if !ok {
		return jsonResult(nil)
	}

	return jsonResult(profile)
}
