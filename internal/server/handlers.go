package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bobmcallan/ghostwatch/internal/models"
	"github.com/bobmcallan/ghostwatch/internal/services/limit"
	"github.com/bobmcallan/ghostwatch/internal/services/portfolio"
	"github.com/bobmcallan/ghostwatch/internal/storage/limitdb"
)

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.app.Snapshots.Current()
	if snap == nil {
		WriteServiceError(w, portfolio.ErrNoSnapshot)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	summary, err := s.app.Portfolio.Summary(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// handleHoldings handles GET /api/holdings[?account=ID].
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	holdings, err := s.app.Portfolio.Holdings(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if accountID := r.URL.Query().Get("account"); accountID != "" {
		filtered := make([]models.HoldingView, 0, len(holdings))
		for _, h := range holdings {
			if h.AccountID == accountID {
				filtered = append(filtered, h)
			}
		}
		holdings = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
	})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	items, err := s.app.Portfolio.Watchlist(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"watchlist": items,
	})
}

// handleRefresh handles POST /api/refresh. It runs a cycle synchronously and
// returns the entities that cycle discovered.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	added, err := s.app.RunCycle(r.Context())
	if err != nil {
		// every cycle failure is upstream
		WriteErrorWithCode(w, http.StatusBadGateway, fmt.Sprintf("Refresh failed: %v", err), "update_failed")
		return
	}
	if added == nil {
		added = []models.EntityDescriptor{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"new_entities": added,
		"status":       s.app.Status(),
	})
}

// handleEntities handles GET /api/entities[?kind=K].
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	entities := s.app.Reconciler.Known()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := make([]models.EntityDescriptor, 0, len(entities))
		for _, e := range entities {
			if string(e.Ref.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entities,
	})
}

func (s *Server) handleLimitList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := s.app.Limits.ListLimits(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"limits": records,
	})
}

// handleLimitByKey dispatches GET/PUT/DELETE /api/limits/{key}.
func (s *Server) handleLimitByKey(w http.ResponseWriter, r *http.Request) {
	key := models.EntityKey(PathParam(r, "/api/limits/"))
	if key == "" {
		s.handleLimitList(w, r)
		return
	}
	if !limit.IsLimitKey(key) {
		WriteErrorWithCode(w, http.StatusBadRequest, fmt.Sprintf("%q is not a limit key", key), "invalid_key")
		return
	}

	switch r.Method {
	case http.MethodGet:
		record, err := s.app.Limits.GetLimit(r.Context(), key)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, record)

	case http.MethodPut:
		var req struct {
			Value *float64 `json:"value"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Value == nil {
			WriteError(w, http.StatusBadRequest, "value is required")
			return
		}
		if err := s.app.Limits.SetLimit(r.Context(), key, *req.Value); err != nil {
			WriteServiceError(w, err)
			return
		}
		record, err := s.app.Limits.GetLimit(r.Context(), key)
		if errors.Is(err, limitdb.ErrNotFound) {
			// zero clears the limit
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, record)

	case http.MethodDelete:
		if err := s.app.Limits.ClearLimit(r.Context(), key); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
