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

	"dinar-ticker/internal/bot"
	"dinar-ticker/internal/cache"
	"dinar-ticker/internal/config"
	"dinar-ticker/internal/conversion"
	"dinar-ticker/internal/db"
	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/handler"
	"dinar-ticker/internal/job"
	"dinar-ticker/internal/metrics"
	"dinar-ticker/internal/ratelimit"
	"dinar-ticker/internal/ratetable"
	"dinar-ticker/internal/repository"
	"dinar-ticker/internal/service"
	"dinar-ticker/internal/simulator"
	"dinar-ticker/internal/stream"
	"dinar-ticker/pkg/logger"
	"dinar-ticker/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	_ "dinar-ticker/docs"
)

const (
	serviceName = "dinar-ticker"
	version     = "1.0.0"
	// updateBuffer absorbs bursts from the multi-asset policy before the
	// hub starts dropping updates for the stream.
	updateBuffer = 256
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newPublisherFunc       = job.NewPublisher
	startPublisherFunc     = func(p *job.Publisher, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Dinar Ticker API
// @version         1.0
// @description     Currency conversion through the Algerian dinar and simulated live prices.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
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
		lg.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
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

	// Start the live price simulation
	policy, err := simulator.PolicyByName(cfg.Live.Policy)
	if err != nil {
		lg.Fatal("invalid live policy", zap.Error(err))
	}
	if lo, hi := cfg.LiveWindow(); lo > 0 {
		policy = policy.WithWindow(lo, hi)
	}
	assets, err := domain.TrackedAssets(cfg.Live.Assets)
	if err != nil {
		lg.Fatal("invalid LIVE_ASSETS", zap.Error(err))
	}
	sim := simulator.New(policy,
		simulator.WithLogger(lg),
		simulator.WithObserver(func(u simulator.Update) { metrics.ObserveLiveUpdate(u.ID, u.State) }),
	)
	handle, err := sim.Start(assets)
	if err != nil {
		lg.Fatal("failed to start live simulation", zap.Error(err))
	}
	defer handle.Stop()

	// Rate service over the static sources and the live feed
	base := domain.Code(cfg.Rates.BaseCurrency)
	if base != domain.BaseCurrency {
		lg.Warn("built-in rates are DZD-denominated; supply matching rates through RATES_FILE or Postgres",
			zap.String("base", string(base)))
	}
	engine := conversion.New(conversion.WithBase(base), conversion.WithStrict(cfg.Rates.Strict))
	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}
	rateService := service.NewRateService(tracer, lg, engine, handle, redisClient, rateSources(cfg, tracer)...).
		WithSnapshotTTL(time.Duration(cfg.Live.SnapshotTTLSecs) * time.Second)
	if err := rateService.ReloadRates(ctx); err != nil {
		lg.Warn("using built-in rates", zap.Error(err))
	}

	// Background publish and reload loops, stopped by ctx cancel
	publisher := newPublisherFunc(tracer, lg, rateService, cfg.Live.PublishIntervalSecs, cfg.Rates.ReloadSecs)
	startPublisherFunc(publisher, ctx)

	// Websocket fan-out
	hub := stream.NewHub(lg)
	updates, unsubscribe, err := handle.Subscribe(updateBuffer)
	if err != nil {
		lg.Fatal("failed to subscribe to live updates", zap.Error(err))
	}
	defer unsubscribe()
	go hub.Run(ctx, updates)

	if err := startTelegramBotFunc(cfg.TelegramBotToken, lg, rateService, ratelimit.PerMinute(cfg.TelegramRateMin)); err != nil {
		lg.Warn("Telegram bot disabled", zap.Error(err))
	}

	// Create handlers and routes
	h := handler.New(tracer, lg, rateService)
	h.SetLiveStream(hub)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(serviceName))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	start := startHTTPServerFunc
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := start(srv); err != nil && err != http.ErrServerClosed {
			lg.Fatal("listen failed", zap.Error(err))
		}
	}()
	lg.Info("Server started",
		zap.Int("port", cfg.HTTPPort),
		zap.Int("assets", len(handle.Assets())),
		zap.String("policy", cfg.Live.Policy),
		zap.Bool("strict", engine.Strict()),
	)

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	lg.Info("Shutting down server...")

	cancel()
	handle.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	<-served

	lg.Info("Server exiting")
}

// rateSources returns the configured static rate sources in merge order:
// the YAML file first, then the Postgres table.
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
