// Package mcpserver exposes the answering service as Model Context Protocol
// tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/rag"
	"github.com/mwiater/manara/internal/schema"
)

const (
	serverName    = "Manara ATS Assistant"
	defaultTopN   = 5
	maxSearchTopN = 50
)

// Service is the part of *rag.Service the tools call.
type Service interface {
	Ask(ctx context.Context, query string, history []rag.Message) rag.Reply
	Retrieve(ctx context.Context, query string, k, topN int) ([]rag.Passage, error)
}

// SearchResult is the JSON body returned by search_documents.
type SearchResult struct {
	CallID   string        `json:"callId"`
	Query    string        `json:"query"`
	Passages []rag.Passage `json:"passages"`
}

// Server wires the tools to a Service.
type Server struct {
	svc    Service
	logger *charmlog.Logger
	mcp    *mcpserver.MCPServer
}

// New registers the ask and search_documents tools for svc.
func New(svc Service, version string, logger *charmlog.Logger) *Server {
	if logger == nil {
		logger = logging.Logger()
	}
	s := &Server{
		svc:    svc,
		logger: logger,
		mcp: mcpserver.NewMCPServer(
			serverName,
			version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
	}
	s.mcp.AddTool(toolFor(schema.AskTool()), s.ask)
	s.mcp.AddTool(toolFor(schema.SearchDocumentsTool()), s.searchDocuments)
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Serve speaks the protocol on in and out until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server starting on stdio")
	if err := mcpserver.NewStdioServer(s.mcp).Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// toolFor converts a schema definition into an MCP tool.
func toolFor(def schema.Definition) mcp.Tool {
	props, _ := def.Parameters["properties"].(map[string]any)
	required, _ := def.Parameters["required"].([]string)
	return mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}

// validate checks the call's arguments against def. The returned result is
// non-nil when the call must be rejected.
func validate(def schema.Definition, request mcp.CallToolRequest) *mcp.CallToolResult {
	args := request.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	if err := def.ValidateValue(args); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

func (s *Server) ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if rejected := validate(schema.AskTool(), request); rejected != nil {
		return rejected, nil
	}
	callID := uuid.NewString()
	query := request.GetString("query", "")
	logging.LogRequest("MCP->RAG", "stdio", "", "ask", map[string]any{"callId": callID, "query": query})

	reply := s.svc.Ask(ctx, query, nil)
	if reply.Err != nil {
		s.logger.Warn("ask degraded", "call_id", callID, "kind", reply.Kind, "err", reply.Err)
	}
	logging.LogRequest("RAG->MCP", "stdio", "", "ask", map[string]any{"callId": callID, "kind": reply.Kind})

	if reply.Kind == rag.KindError {
		return mcp.NewToolResultError(reply.Text), nil
	}
	return mcp.NewToolResultText(reply.Text), nil
}

func (s *Server) searchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if rejected := validate(schema.SearchDocumentsTool(), request); rejected != nil {
		return rejected, nil
	}
	callID := uuid.NewString()
	query := request.GetString("query", "")
	topN := request.GetInt("top_n", defaultTopN)
	if topN <= 0 || topN > maxSearchTopN {
		topN = defaultTopN
	}
	logging.LogRequest("MCP->RAG", "stdio", "", "search_documents", map[string]any{"callId": callID, "query": query, "topN": topN})

	passages, err := s.svc.Retrieve(ctx, query, 0, topN)
	if err != nil {
		s.logger.Error("search failed", "call_id", callID, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if passages == nil {
		passages = []rag.Passage{}
	}

	body, err := json.Marshal(SearchResult{CallID: callID, Query: query, Passages: passages})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
