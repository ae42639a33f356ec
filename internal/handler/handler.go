package handler

import (
	"context"
	"errors"
	"net/http"

	"dinar-ticker/internal/conversion"
	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RateProvider is the slice of the rate service the HTTP API needs.
type RateProvider interface {
	Base() domain.Code
	Rates(ctx context.Context) domain.RateTable
	LiveTable(ctx context.Context) domain.RateTable
	Convert(ctx context.Context, req domain.ConversionRequest, opts service.ConvertOptions) (*domain.ConversionResult, error)
	LivePrices(ctx context.Context) ([]domain.LiveQuote, error)
	LivePrice(ctx context.Context, id string) (*domain.LiveQuote, error)
}

type LiveStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, snapshot []domain.LiveQuote) error
}

type Handler struct {
	tracer trace.Tracer
	logger *zap.Logger
	rates  RateProvider
	stream LiveStreamer
}

func New(tracer trace.Tracer, logger *zap.Logger, rates RateProvider) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tracer: tracer,
		logger: logger,
		rates:  rates,
	}
}

// SetLiveStream enables the websocket endpoint.
func (h *Handler) SetLiveStream(stream LiveStreamer) {
	h.stream = stream
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/rates", h.GetRates)
	api.GET("/convert", h.Convert)
	api.GET("/live", h.GetLivePrices)
	api.GET("/live/stream", h.LiveStream)
	api.GET("/live/:id", h.GetLivePrice)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, conversion.ErrRateNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, conversion.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLiveUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
