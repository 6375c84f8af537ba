package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/ghostwatch/internal/clients/ghostfolio"
	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/services/entity"
	"github.com/bobmcallan/ghostwatch/internal/services/limit"
	"github.com/bobmcallan/ghostwatch/internal/services/portfolio"
	"github.com/bobmcallan/ghostwatch/internal/services/quote"
	"github.com/bobmcallan/ghostwatch/internal/services/snapshot"
	"github.com/bobmcallan/ghostwatch/internal/storage/limitdb"
)

// App holds all initialized services, clients, and the MCP server.
// It is the shared core used by cmd/ghostwatch-server and its tests.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Client      interfaces.GhostfolioClient
	LimitStore  interfaces.LimitStore
	Snapshots   interfaces.SnapshotService
	Reconciler  interfaces.EntityReconciler
	Limits      interfaces.LimitService
	Portfolio   interfaces.PortfolioService
	MCPServer   *server.MCPServer
	StartupTime time.Time

	statusMu sync.RWMutex
	status   CycleStatus

	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, GHOSTWATCH_CONFIG,
// ghostwatch.toml next to the binary, then config/ghostwatch.toml.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("GHOSTWATCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "ghostwatch.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/ghostwatch.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp initializes the client, limit store, services, and the MCP server.
// configPath may be empty, in which case the default resolution logic is used.
// No request is made to Ghostfolio until ValidateConnection or the first cycle.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	config, err := common.LoadConfig(resolveConfigPath(configPath, binDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative paths to the binary directory
	if config.Storage.Limits.Path != "" && !filepath.IsAbs(config.Storage.Limits.Path) {
		config.Storage.Limits.Path = filepath.Join(binDir, config.Storage.Limits.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	if missing := config.ValidateRequired(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("Ghostfolio connection not fully configured - refresh cycles will fail")
	}

	store, err := limitdb.NewStore(logger, config.Storage.Limits.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open limit store: %w", err)
	}

	client := ghostfolio.NewClient(config.Ghostfolio.BaseURL, config.Ghostfolio.AccessToken,
		ghostfolio.WithLogger(logger),
		ghostfolio.WithRateLimit(config.Ghostfolio.RateLimit),
		ghostfolio.WithTimeout(config.Ghostfolio.GetTimeout()),
		ghostfolio.WithVerifySSL(config.Ghostfolio.VerifySSL),
	)

	snapshotOpts := snapshot.OptionsFromConfig(config.Sync)
	snapshots := snapshot.NewService(client, quote.NewService(client, logger), snapshotOpts, logger)
	limits := limit.NewService(store, logger)
	portfolioService := portfolio.NewService(snapshots, limits, portfolio.Settings{
		PortfolioName:    config.Sync.PortfolioName,
		ConnectionID:     config.ConnectionID(),
		HoldingsExpected: snapshotOpts.FetchHoldings,
	}, logger)

	mcpServer := server.NewMCPServer(
		"ghostwatch",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Client:      client,
		LimitStore:  store,
		Snapshots:   snapshots,
		Reconciler:  entity.NewReconciler(entity.OptionsFromConfig(config), logger),
		Limits:      limits,
		Portfolio:   portfolioService,
		MCPServer:   mcpServer,
		StartupTime: startupStart,
	}

	a.registerTools()

	logger.Info().
		Str("connection_id", config.ConnectionID()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// ValidateConnection authenticates and fetches the global performance once,
// the same check a connection is put through before it is accepted.
func (a *App) ValidateConnection(ctx context.Context) error {
	if err := a.Client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if _, err := a.Client.GetPortfolioPerformance(ctx, ""); err != nil {
		return fmt.Errorf("performance check failed: %w", err)
	}
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close limit store.
func (a *App) Close() {
	a.StopScheduler()
	if a.LimitStore != nil {
		if err := a.LimitStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close limit store")
		}
		a.LimitStore = nil
	}
}

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	logger := a.Logger

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createGetStatusTool(), handleGetStatus(a))
	s.AddTool(createGetSnapshotTool(), handleGetSnapshot(a.Snapshots))
	s.AddTool(createGetPortfolioSummaryTool(), handleGetPortfolioSummary(a.Portfolio, logger))
	s.AddTool(createGetHoldingsTool(), handleGetHoldings(a.Portfolio, logger))
	s.AddTool(createGetWatchlistTool(), handleGetWatchlist(a.Portfolio, logger))
	s.AddTool(createListEntitiesTool(), handleListEntities(a.Reconciler))
	s.AddTool(createListLimitsTool(), handleListLimits(a.Limits, logger))
	s.AddTool(createSetLimitTool(), handleSetLimit(a.Limits, logger))
	s.AddTool(createClearLimitTool(), handleClearLimit(a.Limits, logger))
	s.AddTool(createRefreshNowTool(), handleRefreshNow(a))
}
