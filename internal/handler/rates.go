package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	sourceStatic = "static"
	sourceLive   = "live"
)

func parseSource(c *gin.Context) (string, error) {
	source := strings.ToLower(c.DefaultQuery("source", sourceStatic))
	if source != sourceStatic && source != sourceLive {
		return "", errors.New("source must be static or live")
	}
	return source, nil
}

// GetRates godoc
// @Summary      Get the rate table
// @Description  Returns units of the base currency per unit of every supported code
// @Tags         rates
// @Produce      json
// @Param        source  query  string  false  "static or live"  default(static)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/rates [get]
func (h *Handler) GetRates(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-rates")
	defer span.End()

	source, err := parseSource(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("source", source))

	table := h.rates.Rates(ctx)
	if source == sourceLive {
		table = h.rates.LiveTable(ctx)
	}

	c.JSON(http.StatusOK, gin.H{
		"base":   h.rates.Base(),
		"source": source,
		"rates":  table,
	})
}

// Convert godoc
// @Summary      Convert an amount between two codes
// @Description  Converts through the base currency using the static or live table
// @Tags         rates
// @Produce      json
// @Param        amount  query  number  true   "Amount to convert"
// @Param        from    query  string  true   "Source code (e.g., EUR)"
// @Param        to      query  string  true   "Target code (e.g., USD)"
// @Param        source  query  string  false  "static or live"  default(static)
// @Param        strict  query  bool    false  "Fail on unknown codes instead of assuming 1.0"
// @Success      200  {object}  domain.ConversionResult
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/convert [get]
func (h *Handler) Convert(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.convert")
	defer span.End()

	amount, err := strconv.ParseFloat(strings.TrimSpace(c.Query("amount")), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a finite number"})
		return
	}

	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "from and to are required",
			"supported_codes": domain.SupportedCodes(),
		})
		return
	}

	source, err := parseSource(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strict := false
	if s := c.Query("strict"); s != "" {
		if strict, err = strconv.ParseBool(s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "strict must be a boolean"})
			return
		}
	}

	span.SetAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("source", source),
		attribute.Bool("strict", strict),
	)

	res, err := h.rates.Convert(ctx, domain.ConversionRequest{
		Amount: amount,
		From:   domain.Code(from),
		To:     domain.Code(to),
	}, service.ConvertOptions{Live: source == sourceLive, Strict: strict})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
