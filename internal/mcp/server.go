package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "medsearch-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher *searcher.Searcher
	cache    *cache.Manager
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance over an already wired
// searcher and reference cache
func NewServer(srch *searcher.Searcher, mgr *cache.Manager, logger *slog.Logger) (*Server, error) {
	if srch == nil || mgr == nil {
		return nil, errors.New("searcher and cache manager are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		searcher: srch,
		cache:    mgr,
		logger:   logger.With("component", "mcp"),
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until ctx is cancelled
// or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", "server", ServerName, "version", ServerVersion)

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchServicesTool(), s.handleSearchServices)
	s.mcp.AddTool(unifiedSearchTool(), s.handleUnifiedSearch)
	s.mcp.AddTool(suggestServicesTool(), s.handleSuggestServices)
	s.mcp.AddTool(smartSearchTool(), s.handleSmartSearch)
	s.mcp.AddTool(getPackageComponentsTool(), s.handleGetPackageComponents)
	s.mcp.AddTool(getServiceBranchesTool(), s.handleGetServiceBranches)
	s.mcp.AddTool(getReferenceDataTool(), s.handleGetReferenceData)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
	s.mcp.AddTool(getCacheStatusTool(), s.handleGetCacheStatus)
}
