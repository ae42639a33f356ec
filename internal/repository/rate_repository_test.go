package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestRateRepository_LoadRates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectRates)).
		WillReturnRows(pgxmock.NewRows([]string{"code", "rate"}).
			AddRow("eur", 252.0).
			AddRow("USD", 228.0))

	repo := NewRateRepository(mock, testTracer)
	table, err := repo.LoadRates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["EUR"] != 252 || table["USD"] != 228 {
		t.Fatalf("unexpected table: %+v", table)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRateRepository_LoadRatesQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectRates)).WillReturnError(errors.New("connection refused"))

	repo := NewRateRepository(mock, testTracer)
	if _, err := repo.LoadRates(context.Background()); err == nil {
		t.Fatal("expected query error")
	}
}
