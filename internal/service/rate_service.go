package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"dinar-ticker/internal/conversion"
	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/metrics"
	"dinar-ticker/internal/ratetable"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultSnapshotTTL = 30 * time.Second
	liveKeyPrefix      = "live:"
	liveIndexKey       = "live:index"
)

var (
	ErrUnknownAsset    = errors.New("unknown live asset")
	ErrLiveUnavailable = errors.New("live prices unavailable")
)

// RateSource supplies a rate table, e.g. a YAML file or the backend's
// Postgres table.
type RateSource interface {
	Name() string
	LoadRates(ctx context.Context) (domain.RateTable, error)
}

// LiveFeed exposes the simulator's current snapshot.
type LiveFeed interface {
	Snapshot() map[string]domain.PriceState
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// ConvertOptions selects the table a conversion runs against.
type ConvertOptions struct {
	// Live overlays the simulator's current prices on the static table.
	Live bool
	// Strict turns missing rates into errors even when the service default
	// is lenient.
	Strict bool
}

// RateService answers conversion and live price queries.
type RateService struct {
	tracer      trace.Tracer
	logger      *zap.Logger
	engine      *conversion.Engine
	strict      *conversion.Engine
	sources     []RateSource
	static      atomic.Pointer[domain.RateTable]
	feed        LiveFeed
	redis       RedisClient
	snapshotTTL time.Duration
	now         func() time.Time
}

// NewRateService builds a service starting from the built-in rate table.
// feed and redisClient may be nil. Call ReloadRates to apply sources.
func NewRateService(
	tracer trace.Tracer,
	logger *zap.Logger,
	engine *conversion.Engine,
	feed LiveFeed,
	redisClient RedisClient,
	sources ...RateSource,
) *RateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RateService{
		tracer:      tracer,
		logger:      logger,
		engine:      engine,
		strict:      conversion.New(conversion.WithBase(engine.Base()), conversion.WithStrict(true)),
		sources:     sources,
		feed:        feed,
		redis:       redisClient,
		snapshotTTL: defaultSnapshotTTL,
		now:         time.Now,
	}
	defaults := ratetable.Defaults()
	s.static.Store(&defaults)
	return s
}

// WithSnapshotTTL sets how long published live quotes stay in Redis.
func (s *RateService) WithSnapshotTTL(ttl time.Duration) *RateService {
	if ttl > 0 {
		s.snapshotTTL = ttl
	}
	return s
}

// Base returns the base currency conversions triangulate through.
func (s *RateService) Base() domain.Code { return s.engine.Base() }

// Rates returns a copy of the static rate table.
func (s *RateService) Rates(ctx context.Context) domain.RateTable {
	return (*s.static.Load()).Clone()
}

// ReloadRates rebuilds the static table: built-in defaults overlaid by every
// source in order. A failing source is logged and skipped.
func (s *RateService) ReloadRates(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "rate-service.reload-rates")
	defer span.End()

	table := ratetable.Defaults()
	var failed int
	for _, src := range s.sources {
		rates, err := src.LoadRates(ctx)
		if err != nil {
			failed++
			s.logger.Warn("rate source failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		table.Merge(rates)
	}
	s.static.Store(&table)

	s.logger.Info("Reloaded rate table", zap.Int("rates", len(table)), zap.Int("failed_sources", failed))
	if failed > 0 && failed == len(s.sources) {
		return fmt.Errorf("all %d rate sources failed", failed)
	}
	return nil
}

// LiveTable returns the static table with live prices laid over it.
func (s *RateService) LiveTable(ctx context.Context) domain.RateTable {
	table := s.Rates(ctx)
	quotes, err := s.LivePrices(ctx)
	if err != nil {
		s.logger.Debug("live table falls back to static rates", zap.Error(err))
		return table
	}
	for _, q := range quotes {
		if q.Current > 0 {
			table[domain.NormalizeCode(q.ID)] = q.Current
		}
	}
	return table
}

// Convert converts req against the static or live table.
func (s *RateService) Convert(ctx context.Context, req domain.ConversionRequest, opts ConvertOptions) (*domain.ConversionResult, error) {
	ctx, span := s.tracer.Start(ctx, "rate-service.convert")
	defer span.End()

	from := domain.NormalizeCode(string(req.From))
	to := domain.NormalizeCode(string(req.To))
	span.SetAttributes(attribute.String("from", string(from)), attribute.String("to", string(to)))

	source := "static"
	table := s.Rates(ctx)
	if opts.Live {
		source = "live"
		table = s.LiveTable(ctx)
	}

	engine := s.engine
	if opts.Strict {
		engine = s.strict
	}

	result, err := engine.Convert(table, req.Amount, from, to)
	if err != nil {
		metrics.ObserveConversion(source, errorClass(err))
		return nil, err
	}
	rate, err := engine.Rate(table, from, to)
	if err != nil {
		metrics.ObserveConversion(source, errorClass(err))
		return nil, err
	}
	metrics.ObserveConversion(source, "ok")

	return &domain.ConversionResult{
		Amount:    req.Amount,
		From:      from,
		To:        to,
		Result:    result,
		Rate:      rate,
		Display:   domain.FormatAmount(result, domain.DisplayPlaces),
		Source:    source,
		Timestamp: s.now(),
	}, nil
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, conversion.ErrRateNotFound):
		return "rate_not_found"
	case errors.Is(err, conversion.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "error"
	}
}

// LivePrices returns every live quote, sorted by id. Without an in-process
// feed the quotes are read from the Redis snapshot cache.
func (s *RateService) LivePrices(ctx context.Context) ([]domain.LiveQuote, error) {
	ctx, span := s.tracer.Start(ctx, "rate-service.live-prices")
	defer span.End()

	if s.feed != nil {
		snap := s.feed.Snapshot()
		quotes := make([]domain.LiveQuote, 0, len(snap))
		for id, st := range snap {
			quotes = append(quotes, domain.NewLiveQuote(id, st))
		}
		sort.Slice(quotes, func(i, j int) bool { return quotes[i].ID < quotes[j].ID })
		return quotes, nil
	}

	if s.redis == nil {
		return nil, ErrLiveUnavailable
	}
	ids, err := s.getLiveIndex(ctx)
	if err != nil {
		return nil, err
	}
	quotes := make([]domain.LiveQuote, 0, len(ids))
	for _, id := range ids {
		q, err := s.getLiveCache(ctx, id)
		if err != nil {
			return nil, err
		}
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	if len(quotes) == 0 {
		return nil, ErrLiveUnavailable
	}
	return quotes, nil
}

// LivePrice returns the live quote for one asset id.
func (s *RateService) LivePrice(ctx context.Context, id string) (*domain.LiveQuote, error) {
	ctx, span := s.tracer.Start(ctx, "rate-service.live-price")
	defer span.End()

	id = string(domain.NormalizeCode(id))
	span.SetAttributes(attribute.String("asset", id))

	if s.feed != nil {
		st, ok := s.feed.Snapshot()[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
		}
		q := domain.NewLiveQuote(id, st)
		return &q, nil
	}

	if s.redis == nil {
		return nil, ErrLiveUnavailable
	}
	q, err := s.getLiveCache(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return q, nil
}

// PublishSnapshot writes the current live quotes to Redis so other
// processes can read them. It is a no-op without a feed or Redis.
func (s *RateService) PublishSnapshot(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "rate-service.publish-snapshot")
	defer span.End()

	if s.feed == nil || s.redis == nil {
		return nil
	}

	quotes, err := s.LivePrices(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(quotes))
	for i := range quotes {
		if err := s.setLiveCache(ctx, &quotes[i]); err != nil {
			return fmt.Errorf("cache live quote %s: %w", quotes[i].ID, err)
		}
		ids = append(ids, quotes[i].ID)
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, liveIndexKey, data, s.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("cache live index: %w", err)
	}

	s.logger.Debug("Published live snapshot", zap.Int("assets", len(ids)))
	return nil
}

func (s *RateService) setLiveCache(ctx context.Context, q *domain.LiveQuote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, liveKeyPrefix+q.ID, data, s.snapshotTTL).Err()
}

func (s *RateService) getLiveCache(ctx context.Context, id string) (*domain.LiveQuote, error) {
	data, err := s.redis.Get(ctx, liveKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q domain.LiveQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *RateService) getLiveIndex(ctx context.Context) ([]string, error) {
	data, err := s.redis.Get(ctx, liveIndexKey).Bytes()
	if err == redis.Nil {
		return nil, ErrLiveUnavailable
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
