package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/client"
	"github.com/Sternrassler/crypto-market-client/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the shared Redis store is reachable. Without
// Redis the proxy is ready as soon as it serves.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.dataContext(r)
	defer cancel()

	q := r.URL.Query()
	if total := q.Get("total"); total != "" {
		writeData(w, r, s.client.GetAllCoins(ctx, min(queryInt(total, 0), client.MaxTotal)))
		return
	}
	writeData(w, r, s.client.GetCoins(ctx, queryInt(q.Get("page"), 1), queryInt(q.Get("per_page"), 0)))
}

func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.dataContext(r)
	defer cancel()

	writeData(w, r, s.client.GetCoinData(ctx, mux.Vars(r)["id"]))
}

func (s *Server) handleCoinChart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.dataContext(r)
	defer cancel()

	days := queryInt(r.URL.Query().Get("days"), 0)
	writeData(w, r, s.client.GetCoinMarketChart(ctx, mux.Vars(r)["id"], days))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coinID := strings.TrimSpace(q.Get("coinId"))
	if coinID == "" {
		writeError(w, http.StatusBadRequest, "coinId is required")
		return
	}

	ctx, cancel := s.dataContext(r)
	defer cancel()

	writeData(w, r, s.client.GetCoinMarketChart(ctx, coinID, queryInt(q.Get("days"), 0)))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := s.dataContext(r)
	defer cancel()

	writeData(w, r, s.client.GetSearchResults(ctx, query))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.dataContext(r)
	defer cancel()

	writeData(w, r, s.client.GetTrendingCoins(ctx))
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.dataContext(r)
	defer cancel()

	writeData(w, r, s.client.GetGlobalData(ctx))
}

func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.dataContext(r)
	defer cancel()

	q := r.URL.Query()
	writeData(w, r, s.client.GetExchanges(ctx, queryInt(q.Get("page"), 1), queryInt(q.Get("per_page"), 0)))
}

// dataContext bounds a data route by the configured request timeout.
func (s *Server) dataContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.config.RequestTimeout)
}

// writeData answers 200 with d.Value and the data source headers.
func writeData[T any](w http.ResponseWriter, r *http.Request, d client.Data[T]) {
	w.Header().Set(HeaderDataSource, string(d.Source))
	if !d.CachedAt.IsZero() {
		w.Header().Set(HeaderCachedAt, d.CachedAt.UTC().Format(time.RFC3339))
	}

	metrics.HTTPDataSourceTotal.WithLabelValues(routeName(r), string(d.Source)).Inc()

	if d.Source.Degraded() {
		zerolog.Ctx(r.Context()).Debug().
			Err(d.Err).
			Str("source", string(d.Source)).
			Msg("Serving degraded data")
	}

	writeJSON(w, http.StatusOK, d.Value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt parses s, returning def when it is empty or not a number.
func queryInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
