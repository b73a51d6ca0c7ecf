// Command market-proxy serves cached, rate-limit-aware market data to
// dashboard frontends.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/crypto-market-client/internal/api"
	"github.com/Sternrassler/crypto-market-client/pkg/client"
	"github.com/Sternrassler/crypto-market-client/pkg/config"
	"github.com/Sternrassler/crypto-market-client/pkg/logging"
	"github.com/Sternrassler/crypto-market-client/pkg/warmup"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const serviceName = "market-proxy"

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (default: search for market.yaml)")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatal().Err(err).Msg("Market proxy failed")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogConfig(serviceName))

	p, err := newProxy(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:      p.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info().
		Str("addr", ln.Addr().String()).
		Str("upstream", cfg.Upstream.BaseURL).
		Str("user_agent", cfg.Upstream.UserAgent).
		Bool("redis", cfg.RedisEnabled()).
		Msg("Starting market proxy")

	return serve(ctx, srv, ln, cfg.Server.ShutdownTimeout, logger)
}

// proxy holds the wired components of a running market proxy.
type proxy struct {
	client  *client.Client
	redis   *redis.Client
	handler http.Handler
	logger  zerolog.Logger
}

// newProxy connects Redis when configured, creates the market client, warms
// the cache and builds the API handler.
func newProxy(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*proxy, error) {
	p := &proxy{logger: logger}

	if cfg.RedisEnabled() {
		p.redis = redis.NewClient(cfg.RedisOptions())

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.redis.Ping(pingCtx).Err()
		cancel()

		// The memory tier keeps serving while Redis is down
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("Redis unreachable, continuing with memory cache")
		} else {
			logger.Info().Str("addr", cfg.Redis.Address).Msg("Connected to Redis")
		}
	}

	c, err := client.New(cfg.ClientConfig(p.redis))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("create market client: %w", err)
	}
	p.client = c

	if cfg.Warmup.Enabled {
		w := warmup.NewWarmer(logger, warmup.Config{
			Timeout:         cfg.Warmup.Timeout,
			ContinueOnError: true,
			Parallel:        cfg.Warmup.Parallel,
		})
		w.Register(warmup.MarketProviders(c)...)
		w.Warmup(ctx)
	}

	p.handler = api.NewServer(c, api.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		ClientRPS:      cfg.Server.ClientRPS,
		ClientBurst:    cfg.Server.ClientBurst,
	}, logger).Handler()

	return p, nil
}

// Close releases the client and the Redis connection. Failures are logged
// and returned joined.
func (p *proxy) Close() error {
	var errs []error
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close market client")
			errs = append(errs, err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close Redis connection")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// serve runs srv on ln until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down market proxy")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
