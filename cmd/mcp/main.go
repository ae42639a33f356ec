package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dinar-ticker/internal/cache"
	"dinar-ticker/internal/config"
	"dinar-ticker/internal/conversion"
	"dinar-ticker/internal/db"
	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/job"
	"dinar-ticker/internal/mcpserver"
	"dinar-ticker/internal/ratelimit"
	"dinar-ticker/internal/ratetable"
	"dinar-ticker/internal/repository"
	"dinar-ticker/internal/service"
	"dinar-ticker/pkg/logger"
	"dinar-ticker/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	serviceName = "dinar-ticker-mcp"
	version     = "1.0.0"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	startPublisherFunc     = func(p *job.Publisher, ctx context.Context) { go p.Start(ctx) }
	runStdioFunc           = func(ctx context.Context, server *mcp.Server) error { return server.Run(ctx, &mcp.StdioTransport{}) }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	notifyContextFunc      = signal.NotifyContext
)

// The MCP process has no simulator of its own: live prices come from the
// snapshots the server publishes to Redis.
func main() {
	loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := newLoggerFunc(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()
	for _, w := range cfg.Warnings {
		lg.Debug(w)
	}

	ctx, stop := notifyContextFunc(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx, lg)
	initRedisFunc(ctx, lg)

	tp, tracer, err := initTracerFunc(ctx, tracing.Options{
		ServiceName: serviceName,
		Version:     version,
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		lg.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			lg.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	engine := conversion.New(conversion.WithBase(domain.Code(cfg.Rates.BaseCurrency)), conversion.WithStrict(cfg.Rates.Strict))
	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}
	rateService := service.NewRateService(tracer, lg, engine, nil, redisClient, rateSources(cfg, tracer)...)
	if err := rateService.ReloadRates(ctx); err != nil {
		lg.Warn("using built-in rates", zap.Error(err))
	}

	// Only the reload loop does work here; publishing needs a live feed.
	startPublisherFunc(job.NewPublisher(tracer, lg, rateService, cfg.Live.PublishIntervalSecs, cfg.Rates.ReloadSecs), ctx)

	server := mcpserver.New(rateService, lg, version)
	lg.Info("MCP server configured",
		zap.String("transport", cfg.MCP.Transport),
		zap.String("base", string(engine.Base())),
		zap.Bool("strict", engine.Strict()),
	)

	switch cfg.MCP.Transport {
	case "http":
		if err := serveHTTP(ctx, cfg, server, lg); err != nil {
			lg.Fatal("MCP HTTP server failed", zap.Error(err))
		}
	default:
		lg.Info("MCP server listening on stdio")
		if err := runStdioFunc(ctx, server); err != nil && ctx.Err() == nil {
			lg.Fatal("MCP stdio server failed", zap.Error(err))
		}
	}
	lg.Info("MCP server exiting")
}

func serveHTTP(ctx context.Context, cfg *config.Config, server *mcp.Server, lg *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.HTTPHandler(server, cfg.MCP.AuthToken, ratelimit.PerMinute(cfg.MCP.RateLimitPerMin), lg))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.MCP.HTTPBind, cfg.MCP.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: time.Duration(cfg.MCP.RequestTimeoutSecs) * time.Second,
	}
	if cfg.MCP.AuthToken == "" {
		lg.Warn("MCP_AUTH_TOKEN not set, MCP HTTP endpoint is unauthenticated")
	}

	start := startHTTPServerFunc
	errCh := make(chan error, 1)
	go func() {
		lg.Info("MCP server listening", zap.String("addr", srv.Addr))
		if err := start(srv); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := shutdownHTTPServerFunc(srv, shutdownCtx)
	for range errCh {
	}
	return err
}

func rateSources(cfg *config.Config, tracer trace.Tracer) []service.RateSource {
	var sources []service.RateSource
	if cfg.Rates.File != "" {
		sources = append(sources, ratetable.NewFileSource(cfg.Rates.File, domain.Code(cfg.Rates.BaseCurrency)))
	}
	if db.Pool != nil {
		sources = append(sources, repository.NewRateRepository(db.Pool, tracer))
	}
	return sources
}
