// Package mcp provides an MCP (Model Context Protocol) server for gridrun.
// It lets an agent inspect experiment grids and the run ledger without
// launching anything.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/gridrun/internal/config"
	"github.com/nvandessel/gridrun/internal/ledger"
	"github.com/nvandessel/gridrun/internal/logging"
	"github.com/nvandessel/gridrun/internal/ratelimit"
)

// Server wraps the MCP SDK server and provides gridrun tools.
type Server struct {
	server       *sdk.Server
	root         string
	settings     *config.GridrunConfig
	ledger       *ledger.Ledger
	toolLimiters ratelimit.ToolLimiters
	logger       *slog.Logger
	events       *logging.EventLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "gridrun")
	Version string // Server version

	// Root is the directory configuration documents are resolved against;
	// documents outside it are refused.
	Root string

	// Settings is the tool configuration. Nil means config.Default().
	Settings *config.GridrunConfig

	Logger *slog.Logger
	Events *logging.EventLogger
}

// NewServer creates a new MCP server with gridrun tools. The run ledger is
// opened when enabled in Settings.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server root: %w", err)
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		root:         root,
		settings:     settings,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
		events:       cfg.Events,
	}

	if settings.Ledger.Enabled {
		path, err := settings.LedgerPath()
		if err != nil {
			return nil, err
		}
		s.ledger, err = ledger.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
	}

	s.server = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)
	s.registerTools()

	return s, nil
}

// Run serves MCP over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Debug("mcp server starting", "root", s.root, "ledger", s.ledger != nil)
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close releases the run ledger.
func (s *Server) Close() error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Close()
}
