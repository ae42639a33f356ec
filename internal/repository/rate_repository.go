package repository

import (
	"context"

	"dinar-ticker/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// The exchange_rates table is owned by the marketplace backend; this
// repository only reads it.
const selectRates = `SELECT code, rate FROM exchange_rates WHERE rate > 0`

type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RateRepository reads the externally maintained rate table from Postgres.
type RateRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRateRepository(pool PgxPool, tracer trace.Tracer) *RateRepository {
	return &RateRepository{pool: pool, tracer: tracer}
}

func (r *RateRepository) Name() string { return "postgres:exchange_rates" }

func (r *RateRepository) LoadRates(ctx context.Context) (domain.RateTable, error) {
	ctx, span := r.tracer.Start(ctx, "rate-repo.load-rates")
	defer span.End()

	rows, err := r.pool.Query(ctx, selectRates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(domain.RateTable)
	for rows.Next() {
		var (
			code string
			rate float64
		)
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, err
		}
		table[domain.NormalizeCode(code)] = rate
	}
	return table, rows.Err()
}
