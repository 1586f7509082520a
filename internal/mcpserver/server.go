// Package mcpserver exposes the tools over the Model Context Protocol on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"dragon-mcp/internal/tools"
	"dragon-mcp/internal/version"
)

const (
	statsURIPrefix   = "dragon://stats/"
	statsURITemplate = statsURIPrefix + "{chain}"
)

// Server wraps the MCP server and its handlers.
type Server struct {
	tools  *tools.Toolset
	mcp    *server.MCPServer
	logger zerolog.Logger
}

// New registers every tool, the stats resource and the prompts.
func New(ts *tools.Toolset, logger zerolog.Logger) *Server {
	s := &Server{
		tools:  ts,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
	s.mcp = server.NewMCPServer(
		version.ServiceName,
		version.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	for _, spec := range tools.Specs() {
		s.mcp.AddTool(toolFor(spec), s.toolHandler(spec.Name))
	}

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(statsURITemplate, "Dragon chain stats",
			mcp.WithTemplateDescription("Get Dragon ecosystem stats for a specific chain"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleStats,
	)

	for _, p := range prompts {
		text := p.text
		s.mcp.AddPrompt(mcp.NewPrompt(p.name, mcp.WithPromptDescription(p.description)),
			func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
				return mcp.NewGetPromptResult(p.description, []mcp.PromptMessage{
					mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
				}), nil
			})
	}
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in/out until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info().Int("tools", len(tools.Names())).Msg("mcp stdio server starting")
	stdio := server.NewStdioServer(s.mcp)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	s.logger.Info().Msg("mcp stdio server stopped")
	return nil
}

func toolFor(spec tools.Spec) mcp.Tool {
	schema, err := json.Marshal(spec.InputSchema())
	if err != nil {
		panic(fmt.Sprintf("marshal schema for %s: %v", spec.Name, err))
	}
	return mcp.NewToolWithRawSchema(string(spec.Name), spec.Description, schema)
}

func (s *Server) toolHandler(name tools.Name) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.callTool(ctx, name, req.Params.Arguments), nil
	}
}

// callTool runs name and renders the outcome. Failures become error results
// carrying a JSON body, never protocol errors.
func (s *Server) callTool(ctx context.Context, name tools.Name, args interface{}) *mcp.CallToolResult {
	raw, err := json.Marshal(args)
	if err != nil {
		return errorResult(name, fmt.Errorf("encode arguments: %w", err))
	}

	out, err := s.tools.Call(ctx, name, raw)
	if err != nil {
		return errorResult(name, err)
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(name, fmt.Errorf("encode result: %w", err))
	}
	return mcp.NewToolResultText(string(body))
}

func errorResult(name tools.Name, err error) *mcp.CallToolResult {
	body, _ := json.MarshalIndent(map[string]string{
		"error": err.Error(),
		"tool":  string(name),
	}, "", "  ")
	return mcp.NewToolResultError(string(body))
}

func (s *Server) handleStats(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	chainID := strings.ToLower(strings.TrimPrefix(uri, statsURIPrefix))
	if chainID == "" || chainID == uri {
		return nil, fmt.Errorf("invalid stats resource uri %q", uri)
	}

	body, err := json.MarshalIndent(s.tools.Registry().Stats(chainID), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(body)},
	}, nil
}
