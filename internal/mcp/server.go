package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
)

// SessionProvider supplies the current session and replaces it on account changes.
type SessionProvider interface {
	Current() (*session.Session, error)
	SwitchAccount(ctx context.Context, account ledger.Account) (*session.Session, error)
}

// Config contains server configuration.
type Config struct {
	Sessions      SessionProvider
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "gigboard",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(accountMiddleware(cfg.Sessions))
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Sessions)

	cfg.Logger.Debug("mcp server configured", "transport", cfg.TransportMode)
	return server
}
