// Package api exposes the market client over HTTP for dashboard consumers.
//
// Data routes always answer 200 with a JSON body; the X-Data-Source header
// tells whether the body is live, cached, stale or fallback data and
// X-Cached-At carries the time the data was fetched upstream.
package api

import (
	"net/http"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/client"
	"github.com/Sternrassler/crypto-market-client/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	// HeaderDataSource names the source of a data response.
	HeaderDataSource = "X-Data-Source"
	// HeaderCachedAt carries the RFC 3339 fetch time of cached data.
	HeaderCachedAt = "X-Cached-At"
	// HeaderRequestID carries the request ID.
	HeaderRequestID = "X-Request-ID"
)

// Config configures the HTTP API.
type Config struct {
	// RequestTimeout bounds how long a data route waits before it answers
	// with degraded data. Zero disables the bound.
	RequestTimeout time.Duration

	// ClientRPS and ClientBurst configure the per-client token bucket.
	// ClientRPS <= 0 disables per-client limiting.
	ClientRPS   float64
	ClientBurst int
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		ClientRPS:      20,
		ClientBurst:    40,
	}
}

// Server routes dashboard requests to the market client.
type Server struct {
	client *client.Client
	config Config
	logger zerolog.Logger
	router *mux.Router
}

// NewServer creates the API server and registers its routes.
func NewServer(c *client.Client, cfg Config, logger zerolog.Logger) *Server {
	s := &Server{
		client: c,
		config: cfg,
		logger: logger.With().Str("component", "api").Logger(),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestIDMiddleware(s.logger), loggingMiddleware, metricsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if s.config.ClientRPS > 0 {
		api.Use(newClientLimiter(s.config.ClientRPS, s.config.ClientBurst).middleware)
	}

	api.HandleFunc("/coins", s.handleCoins).Methods(http.MethodGet)
	api.HandleFunc("/coins/{id}", s.handleCoin).Methods(http.MethodGet)
	api.HandleFunc("/coins/{id}/market_chart", s.handleCoinChart).Methods(http.MethodGet)
	api.HandleFunc("/chart", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/trending", s.handleTrending).Methods(http.MethodGet)
	api.HandleFunc("/global", s.handleGlobal).Methods(http.MethodGet)
	api.HandleFunc("/exchanges", s.handleExchanges).Methods(http.MethodGet)
}
