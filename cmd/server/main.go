package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gigboard/internal/config"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ethledger"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/mcp"
	"github.com/rpggio/gigboard/internal/sqlite"
	"github.com/rpggio/gigboard/internal/telemetry"
	"github.com/rpggio/gigboard/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		file, err := openRotatingFile(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = file
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	if err := ensureDBDir(cfg.Store.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	l, identity, closeLedger, err := openLedger(ctx, cfg.Ledger, db, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	sessions := session.NewManager(l, identity, activitySvc, session.Config{
		SettlementTimeout: cfg.Actions.SettlementTimeout,
		AutoRefresh:       cfg.ReadModel.AutoRefresh,
		Logger:            logger,
	})
	defer sessions.Disconnect()

	if _, err := sessions.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Sessions:      sessions,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(ctx, logger, mcpServer)
	}
	return runHTTPMode(ctx, logger, cfg.Server, sessions, mcpServer)
}

// openLedger selects the ledger driver. The dev driver signs as the
// configured account; the eth driver signs with its private key.
func openLedger(ctx context.Context, cfg config.LedgerConfig, db *sqlite.DB, logger *slog.Logger) (ledger.Ledger, ledger.IdentityProvider, func(), error) {
	switch cfg.Driver {
	case "eth":
		client, err := ethledger.Dial(ctx, ethledger.Config{
			RPCURL:          cfg.Eth.RPCURL,
			ContractAddress: cfg.Eth.Contract,
			PrivateKey:      cfg.Eth.PrivateKey,
			ChainID:         cfg.Eth.ChainID,
			PollInterval:    cfg.Eth.PollInterval,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect ledger: %w", err)
		}
		logger.Info("using contract ledger", "rpc", cfg.Eth.RPCURL, "contract", cfg.Eth.Contract)
		return client, client, client.Close, nil
	default:
		dev := sqlite.NewLedger(db,
			sqlite.WithBlockDelay(cfg.Dev.BlockDelay),
			sqlite.WithLogger(logger),
		)
		logger.Info("using dev ledger", "account", cfg.Dev.Account, "block_delay", cfg.Dev.BlockDelay)
		return dev, ledger.StaticIdentity(cfg.Dev.Account), func() {}, nil
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport")

	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, cfg config.ServerConfig, sessions *session.Manager, mcpServer *sdkmcp.Server) error {
	gin.SetMode(gin.ReleaseMode)

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
	)
	router := transport.NewServer(transport.Config{
		Sessions: sessions,
		MCP:      mcpHandler,
		Logger:   logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(logger, httpServer)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func shutdown(logger *slog.Logger, server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return server.Shutdown(ctx)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
