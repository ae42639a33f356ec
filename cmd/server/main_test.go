package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"dinar-ticker/internal/bot"
	"dinar-ticker/internal/config"
	"dinar-ticker/internal/job"
	"dinar-ticker/internal/ratelimit"
	"dinar-ticker/pkg/tracing"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(t)
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestMainWaitsForListener(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(t)
	defer restore()

	release := make(chan struct{})
	var listened atomic.Bool
	startHTTPServerFunc = func(*http.Server) error {
		<-release
		listened.Store(true)
		return http.ErrServerClosed
	}

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("main returned while the listener was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
	if !listened.Load() {
		t.Fatal("listener did not finish before main returned")
	}
}

func TestRateSources(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")

	cfg := &config.Config{}
	if got := rateSources(cfg, tracer); len(got) != 0 {
		t.Fatalf("expected no sources, got %d", len(got))
	}

	cfg.Rates.File = filepath.Join(t.TempDir(), "rates.yaml")
	cfg.Rates.BaseCurrency = "DZD"
	got := rateSources(cfg, tracer)
	if len(got) != 1 || got[0].Name() != "file:"+cfg.Rates.File {
		t.Fatalf("unexpected sources: %+v", got)
	}
}

func stubServerDeps(t *testing.T) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origStartPublisher := startPublisherFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	ratesFile := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(ratesFile, []byte("base: DZD\nrates:\n  EUR: 250\n"), 0o600); err != nil {
		t.Fatalf("write rates file: %v", err)
	}

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) {
		cfg := &config.Config{HTTPPort: 8080, LogLevel: "info", Warnings: []string{"TELEGRAM_BOT_TOKEN not set"}}
		cfg.Rates = config.RatesConfig{BaseCurrency: "DZD", File: ratesFile, ReloadSecs: 60}
		cfg.Live = config.LiveConfig{Policy: "multi", Assets: []string{"EUR", "USD"}, PublishIntervalSecs: 1, SnapshotTTLSecs: 30}
		return cfg, nil
	}
	newLoggerFunc = func(string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initPostgresFunc = func(context.Context, *zap.Logger) {}
	initRedisFunc = func(context.Context, *zap.Logger) {}
	initTracerFunc = func(ctx context.Context, opts tracing.Options) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	startPublisherFunc = func(*job.Publisher, context.Context) {}
	startTelegramBotFunc = func(string, *zap.Logger, bot.RateQuerier, *ratelimit.Limiter) error { return nil }
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		startPublisherFunc = origStartPublisher
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
