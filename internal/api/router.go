// Package api serves the engine's read-only HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"confluence-engine/internal/metrics"
	"confluence-engine/internal/model"
)

const maxDecisionLimit = 500

// Engine is the read side of the engine used by the API.
type Engine interface {
	CapitalStatus() model.CapitalStatus
	Recent(symbol string) []model.Decision
	Halted() bool
}

// History serves persisted decisions (the SQLite journal).
type History interface {
	Recent(ctx context.Context, symbol string, limit int) ([]model.Decision, error)
}

// Options wires the router. Engine is required; the rest are optional.
type Options struct {
	Engine  Engine
	History History
	Health  *metrics.HealthStatus
	WS      http.Handler
}

type capitalResponse struct {
	model.CapitalStatus
	Halted bool `json:"halted"`
}

// NewRouter sets up the HTTP routes:
//
//	GET /api/v1/health                      component health (503 when unhealthy)
//	GET /api/v1/capital                     current Capital Guard status
//	GET /api/v1/decisions?symbol=&limit=    recent decisions from the in-memory ring
//	GET /api/v1/decisions?source=journal    recent decisions from the journal (symbol optional)
//	GET /ws                                 decision and capital stream
func NewRouter(opts Options) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "halted": opts.Engine.Halted()})
			return
		}
		_, code, body := opts.Health.Snapshot()
		writeJSON(w, code, body)
	})

	mux.HandleFunc("GET /api/v1/capital", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, capitalResponse{
			CapitalStatus: opts.Engine.CapitalStatus(),
			Halted:        opts.Engine.Halted(),
		})
	})

	mux.HandleFunc("GET /api/v1/decisions", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		symbol := q.Get("symbol")
		limit := 50
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxDecisionLimit)
		}

		if q.Get("source") == "journal" {
			if opts.History == nil {
				writeError(w, http.StatusNotFound, "journal not configured")
				return
			}
			decisions, err := opts.History.Recent(r.Context(), symbol, limit)
			if err != nil {
				log.Printf("[api] journal query: %v", err)
				writeError(w, http.StatusInternalServerError, "journal query failed")
				return
			}
			writeJSON(w, http.StatusOK, orEmpty(decisions))
			return
		}

		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		decisions := opts.Engine.Recent(symbol)
		if len(decisions) > limit {
			decisions = decisions[:limit]
		}
		writeJSON(w, http.StatusOK, orEmpty(decisions))
	})

	if opts.WS != nil {
		mux.Handle("GET /ws", opts.WS)
	}
	return mux
}

func orEmpty(d []model.Decision) []model.Decision {
	if d == nil {
		return []model.Decision{}
	}
	return d
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
