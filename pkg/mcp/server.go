// Package mcp implements a Model Context Protocol server exposing
// cortex-recall's search/git_search/explain/assess/file_profile verbs
// as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/cortex"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/observability"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "cortex-recall"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 5
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Cortex is the verb-level facade every tool handler calls into.
	Cortex *cortex.Cortex

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with cortex-recall tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	cortex  *cortex.Cortex
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewServer creates a new MCP server with all cortex-recall tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		inner:   inner,
		cortex:  deps.Cortex,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		logger:  logger,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all cortex-recall MCP tools to the server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSearch,
		Description: searchToolDescription,
	}, withMetrics(s.metrics, ToolNameSearch, withTracing(s.tracer, ToolNameSearch,
		withRequestID(s.logger, ToolNameSearch, s.handleSearch))))
	s.trackTool(ToolNameSearch)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameGitSearch,
		Description: gitSearchToolDescription,
	}, withMetrics(s.metrics, ToolNameGitSearch, withTracing(s.tracer, ToolNameGitSearch,
		withRequestID(s.logger, ToolNameGitSearch, s.handleGitSearch))))
	s.trackTool(ToolNameGitSearch)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameExplain,
		Description: explainToolDescription,
	}, withMetrics(s.metrics, ToolNameExplain, withTracing(s.tracer, ToolNameExplain,
		withRequestID(s.logger, ToolNameExplain, s.handleExplain))))
	s.trackTool(ToolNameExplain)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameAssess,
		Description: assessToolDescription,
	}, withMetrics(s.metrics, ToolNameAssess, withTracing(s.tracer, ToolNameAssess,
		withRequestID(s.logger, ToolNameAssess, s.handleAssess))))
	s.trackTool(ToolNameAssess)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameFileProfile,
		Description: fileProfileToolDescription,
	}, withMetrics(s.metrics, ToolNameFileProfile, withTracing(s.tracer, ToolNameFileProfile,
		withRequestID(s.logger, ToolNameFileProfile, s.handleFileProfile))))
	s.trackTool(ToolNameFileProfile)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// requestIDMetaKey is the metadata key for the per-call request_id in MCP
// tool response content.
const requestIDMetaKey = "request_id"

// withRequestID wraps an MCP tool handler to mint a v4 request ID per
// invocation. Tool calls have no natural content-hash key (the same
// arguments can legitimately be called twice), so this is the identifier
// logs and traces for one invocation correlate on.
func withRequestID[Input any](
	logger *slog.Logger,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		requestID := uuid.NewString()

		logger.DebugContext(ctx, "mcp tool call", "tool", toolName, "request_id", requestID)

		result, output, err := handler(ctx, req, input)
		if result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", requestIDMetaKey, requestID),
			})
		}

		return result, output, err
	}
}

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		// Include trace_id in response when span is sampled.
		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, "mcp."+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, "mcp."+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	searchToolDescription = "Semantic search over code chunks in the indexed repository. " +
		"Accepts a natural-language or code-shaped query and an optional path filter."

	gitSearchToolDescription = "Search git commit history with a free-text query, classified into " +
		"the right retrieval strategy (blame, pickaxe, temporal, structured, or semantic) and " +
		"refinable with explicit after/before/author/file/type filters."

	explainToolDescription = "Answer a question with combined evidence: the nearest code chunks " +
		"and the nearest commit-history chunks for the same query."

	assessToolDescription = "Assess the risk of a proposed change: synthesizes stability, " +
		"ownership, pattern, and risk warnings for the files it touches."

	fileProfileToolDescription = "Return the stability/ownership/risk profile computed for a single file."
)
