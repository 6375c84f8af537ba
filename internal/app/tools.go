package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
	"github.com/bobmcallan/ghostwatch/internal/services/limit"
	"github.com/bobmcallan/ghostwatch/internal/services/portfolio"
	"github.com/bobmcallan/ghostwatch/internal/storage/limitdb"
)

// --- tool definitions ---

func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Ghostwatch server version and status. Use this to verify connectivity."),
	)
}

func createGetStatusTool() mcp.Tool {
	return mcp.NewTool("get_status",
		mcp.WithDescription("Get the outcome of recent refresh cycles: counts, last success, last error and number of known entities."),
	)
}

func createGetSnapshotTool() mcp.Tool {
	return mcp.NewTool("get_snapshot",
		mcp.WithDescription("Get the raw snapshot installed by the last successful refresh cycle, including degraded sub-fetches."),
	)
}

func createGetPortfolioSummaryTool() mcp.Tool {
	return mcp.NewTool("get_portfolio_summary",
		mcp.WithDescription("Get global and per-account performance metrics (values in base currency, percentages x100) with account health."),
	)
}

func createGetHoldingsTool() mcp.Tool {
	return mcp.NewTool("get_holdings",
		mcp.WithDescription("Get active holdings of active accounts with gain, trend and low/high limit status."),
		mcp.WithString("account_id",
			mcp.Description("Only return holdings of this account"),
		),
	)
}

func createGetWatchlistTool() mcp.Tool {
	return mcp.NewTool("get_watchlist",
		mcp.WithDescription("Get watchlist symbols with the latest meaningful price, day-over-day change and limit status."),
	)
}

func createListEntitiesTool() mcp.Tool {
	return mcp.NewTool("list_entities",
		mcp.WithDescription("List every entity exposed so far (portfolio, accounts, holdings, watchlist, limits) with its stable key."),
		mcp.WithString("kind",
			mcp.Description("Filter by entity kind (e.g., 'holding', 'holding_limit_low', 'watchlist')"),
		),
	)
}

func createListLimitsTool() mcp.Tool {
	return mcp.NewTool("list_limits",
		mcp.WithDescription("List every stored low/high limit value by entity key."),
	)
}

func createSetLimitTool() mcp.Tool {
	return mcp.NewTool("set_limit",
		mcp.WithDescription("Set a low or high price limit. The key is a limit entity key from list_entities. A value of 0 clears the limit."),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Limit entity key (e.g., 'ghostfolio_limit_low_<account>_<symbol>_<connection>')"),
		),
		mcp.WithNumber("value",
			mcp.Required(),
			mcp.Description("Limit price between 0 and 900000, rounded to 0.01"),
		),
	)
}

func createClearLimitTool() mcp.Tool {
	return mcp.NewTool("clear_limit",
		mcp.WithDescription("Remove a stored limit."),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Limit entity key"),
		),
	)
}

func createRefreshNowTool() mcp.Tool {
	return mcp.NewTool("refresh_now",
		mcp.WithDescription("Run a refresh cycle immediately and return the entities it discovered."),
	)
}

// --- handlers ---

func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Ghostwatch MCP Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

func handleGetStatus(a *App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(a.Status()), nil
	}
}

func handleGetSnapshot(snapshots interfaces.SnapshotService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap := snapshots.Current()
		if snap == nil {
			return errorResult("Error: " + portfolio.ErrNoSnapshot.Error()), nil
		}
		return jsonResult(snap), nil
	}
}

func handleGetPortfolioSummary(portfolioService interfaces.PortfolioService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summary, err := portfolioService.Summary(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("get_portfolio_summary failed")
			return errorResult("Error: " + err.Error()), nil
		}
		return jsonResult(summary), nil
	}
}

func handleGetHoldings(portfolioService interfaces.PortfolioService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		holdings, err := portfolioService.Holdings(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("get_holdings failed")
			return errorResult("Error: " + err.Error()), nil
		}

		if accountID := request.GetString("account_id", ""); accountID != "" {
			filtered := make([]models.HoldingView, 0, len(holdings))
			for _, h := range holdings {
				if h.AccountID == accountID {
					filtered = append(filtered, h)
				}
			}
			holdings = filtered
		}
		return jsonResult(holdings), nil
	}
}

func handleGetWatchlist(portfolioService interfaces.PortfolioService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items, err := portfolioService.Watchlist(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("get_watchlist failed")
			return errorResult("Error: " + err.Error()), nil
		}
		return jsonResult(items), nil
	}
}

func handleListEntities(reconciler interfaces.EntityReconciler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entities := reconciler.Known()
		if kind := request.GetString("kind", ""); kind != "" {
			filtered := make([]models.EntityDescriptor, 0, len(entities))
			for _, e := range entities {
				if string(e.Ref.Kind) == kind {
					filtered = append(filtered, e)
				}
			}
			entities = filtered
		}
		return jsonResult(entities), nil
	}
}

func handleListLimits(limits interfaces.LimitService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := limits.ListLimits(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("list_limits failed")
			return errorResult("Error: " + err.Error()), nil
		}
		return jsonResult(records), nil
	}
}

func handleSetLimit(limits interfaces.LimitService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := request.RequireString("key")
		if err != nil || key == "" {
			return errorResult("Error: key parameter is required"), nil
		}
		value, err := request.RequireFloat("value")
		if err != nil {
			return errorResult("Error: value parameter is required"), nil
		}

		if err := limits.SetLimit(ctx, models.EntityKey(key), value); err != nil {
			if !errors.Is(err, limit.ErrInvalidKey) && !errors.Is(err, limit.ErrInvalidValue) {
				logger.Error().Err(err).Str("key", key).Msg("set_limit failed")
			}
			return errorResult("Error: " + err.Error()), nil
		}

		record, err := limits.GetLimit(ctx, models.EntityKey(key))
		if errors.Is(err, limitdb.ErrNotFound) {
			return textResult(fmt.Sprintf("Limit %s cleared", key)), nil
		}
		if err != nil {
			logger.Error().Err(err).Str("key", key).Msg("set_limit read-back failed")
			return errorResult("Error: " + err.Error()), nil
		}
		return jsonResult(record), nil
	}
}

func handleClearLimit(limits interfaces.LimitService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := request.RequireString("key")
		if err != nil || key == "" {
			return errorResult("Error: key parameter is required"), nil
		}
		if err := limits.ClearLimit(ctx, models.EntityKey(key)); err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("clear_limit failed")
			return errorResult("Error: " + err.Error()), nil
		}
		return textResult(fmt.Sprintf("Limit %s cleared", key)), nil
	}
}

func handleRefreshNow(a *App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		added, err := a.RunCycle(ctx)
		if err != nil {
			return errorResult("Error: " + err.Error()), nil
		}
		if added == nil {
			added = []models.EntityDescriptor{}
		}
		return jsonResult(map[string]interface{}{
			"new_entities": added,
			"status":       a.Status(),
		}), nil
	}
}

// --- helpers ---

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error: failed to encode result: " + err.Error())
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
