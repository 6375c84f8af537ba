package server

import (
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/ghostwatch/internal/common"
)

// registerRoutes sets up the MCP endpoint and all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// MCP over Streamable HTTP
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.app.MCPServer,
		mcpserver.WithStateLess(true),
	))

	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Portfolio
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/holdings", s.handleHoldings)
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/refresh", s.handleRefresh)

	// Entities and limits
	mux.HandleFunc("/api/entities", s.handleEntities)
	mux.HandleFunc("/api/limits/", s.handleLimitByKey)
	mux.HandleFunc("/api/limits", s.handleLimitList)
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// handleHealth reports process liveness and the outcome of the last cycle.
// The status is "degraded" while no snapshot has been installed or the last
// cycle failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}

	status := "ok"
	cycle := s.app.Status()
	if s.app.Snapshots.Current() == nil || cycle.LastError != "" {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"uptime": time.Since(s.app.StartupTime).Round(time.Second).String(),
		"cycle":  cycle,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// handleConfig returns the effective configuration with the access token masked.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	cfg := *s.app.Config
	if cfg.Ghostfolio.AccessToken != "" {
		cfg.Ghostfolio.AccessToken = "********"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"config":        cfg,
		"connection_id": s.app.Config.ConnectionID(),
		"interval":      s.app.Config.Sync.GetInterval().String(),
	})
}
