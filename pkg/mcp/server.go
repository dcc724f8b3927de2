// Package mcp exposes the deliverable parser to agents over the Model
// Context Protocol.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/deliverable/internal/filter"
	"github.com/rendis/deliverable/internal/store"
	"github.com/rendis/deliverable/pkg/deliverable"
)

// ServerDeps holds the dependencies for creating a Server. Store may be
// nil, in which case parse results are not persisted and the query tool
// reports an empty result set.
type ServerDeps struct {
	Parser *deliverable.Parser
	Store  store.Store
	Filter *filter.Engine
	Logger *slog.Logger
}

// Server wraps an MCP server with deliverable-specific tool handlers.
type Server struct {
	parser    *deliverable.Parser
	store     store.Store
	filter    *filter.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all 4 tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	parser := deps.Parser
	if parser == nil {
		parser = deliverable.NewParser(deliverable.DefaultOptions(), logger)
	}

	s := &Server{
		parser: parser,
		store:  deps.Store,
		filter: deps.Filter,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"deliverable",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Deliverable converts loosely structured LLM response text into typed workflow graphs and checklists. Use deliverable.parse_workflow for graphs, deliverable.parse_checklist for checklists, deliverable.render for a Mermaid view, and deliverable.query to list stored parse results."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: parseWorkflowTool(), Handler: s.handleParseWorkflow},
		{Tool: parseChecklistTool(), Handler: s.handleParseChecklist},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}
