package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GetLivePrices godoc
// @Summary      Get simulated live prices
// @Description  Returns the latest simulated price, previous price and direction of every tracked asset
// @Tags         live
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/live [get]
func (h *Handler) GetLivePrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-live-prices")
	defer span.End()

	quotes, err := h.rates.LivePrices(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"base": h.rates.Base(), "prices": quotes})
}

// GetLivePrice godoc
// @Summary      Get the simulated live price of one asset
// @Tags         live
// @Produce      json
// @Param        id  path  string  true  "Asset id (e.g., EUR, BTC, GOLD18)"
// @Success      200  {object}  domain.LiveQuote
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/live/{id} [get]
func (h *Handler) GetLivePrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-live-price")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("asset", id))

	quote, err := h.rates.LivePrice(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// LiveStream godoc
// @Summary      Stream live prices over a websocket
// @Description  Sends a snapshot frame followed by one update frame per price tick
// @Tags         live
// @Success      101
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/live/stream [get]
func (h *Handler) LiveStream(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live stream unavailable"})
		return
	}

	quotes, err := h.rates.LivePrices(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.stream.Serve(c.Writer, c.Request, quotes); err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}
