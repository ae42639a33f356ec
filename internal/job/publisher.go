package job

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher runs background loops that share live prices with other
// processes and keep the static rate table fresh.
type Publisher struct {
	tracer          trace.Tracer
	logger          *zap.Logger
	rates           SnapshotPublisher
	publishInterval time.Duration
	reloadInterval  time.Duration
}

type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context) error
	ReloadRates(ctx context.Context) error
}

func NewPublisher(tracer trace.Tracer, logger *zap.Logger, rates SnapshotPublisher, publishIntervalSecs, reloadIntervalSecs int) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		tracer:          tracer,
		logger:          logger,
		rates:           rates,
		publishInterval: time.Duration(publishIntervalSecs) * time.Second,
		reloadInterval:  time.Duration(reloadIntervalSecs) * time.Second,
	}
}

// Start launches the background loops. Blocks until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	p.logger.Info("Publisher starting",
		zap.Duration("publish_interval", p.publishInterval),
		zap.Duration("reload_interval", p.reloadInterval),
	)

	go p.pollLoop(ctx, "publish-live", p.publishInterval, p.rates.PublishSnapshot)

	// The rate table is loaded once at startup, so the first reload waits a
	// full interval.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.reloadInterval):
		}
		p.pollLoop(ctx, "reload-rates", p.reloadInterval, p.rates.ReloadRates)
	}()

	<-ctx.Done()
	p.logger.Info("Publisher stopped")
}

func (p *Publisher) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	p.run(ctx, name, fn)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx, name, fn)
		}
	}
}

func (p *Publisher) run(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, span := p.tracer.Start(ctx, "publisher."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		p.logger.Warn("publisher loop error", zap.String("loop", name), zap.Error(err))
	}
}
