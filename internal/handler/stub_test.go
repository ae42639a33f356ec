package handler

import (
	"context"
	"net/http"
	"net/http/httptest"

	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("handler-test")

func newTestRouter(rates RateProvider, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(testTracer, nil, rates).RegisterRoutes(r, apiKey)
	return r
}

func doGet(r http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

type stubRates struct {
	table    domain.RateTable
	live     domain.RateTable
	quotes   []domain.LiveQuote
	liveErr  error
	convert  func(req domain.ConversionRequest, opts service.ConvertOptions) (*domain.ConversionResult, error)
	lastOpts service.ConvertOptions
}

func (s *stubRates) Base() domain.Code { return domain.BaseCurrency }

func (s *stubRates) Rates(ctx context.Context) domain.RateTable { return s.table }

func (s *stubRates) LiveTable(ctx context.Context) domain.RateTable { return s.live }

func (s *stubRates) Convert(ctx context.Context, req domain.ConversionRequest, opts service.ConvertOptions) (*domain.ConversionResult, error) {
	s.lastOpts = opts
	return s.convert(req, opts)
}

func (s *stubRates) LivePrices(ctx context.Context) ([]domain.LiveQuote, error) {
	if s.liveErr != nil {
		return nil, s.liveErr
	}
	return s.quotes, nil
}

func (s *stubRates) LivePrice(ctx context.Context, id string) (*domain.LiveQuote, error) {
	if s.liveErr != nil {
		return nil, s.liveErr
	}
	for i := range s.quotes {
		if s.quotes[i].ID == id {
			return &s.quotes[i], nil
		}
	}
	return nil, service.ErrUnknownAsset
}
