// Package mcpserver exposes conversion and live price queries as MCP tools.
package mcpserver

import (
	"context"
	"time"

	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const serverName = "dinar-ticker"

type RateQuerier interface {
	Base() domain.Code
	Rates(ctx context.Context) domain.RateTable
	LiveTable(ctx context.Context) domain.RateTable
	Convert(ctx context.Context, req domain.ConversionRequest, opts service.ConvertOptions) (*domain.ConversionResult, error)
	LivePrices(ctx context.Context) ([]domain.LiveQuote, error)
	LivePrice(ctx context.Context, id string) (*domain.LiveQuote, error)
}

type ConvertInput struct {
	Amount float64 `json:"amount" jsonschema:"amount to convert"`
	From   string  `json:"from" jsonschema:"source currency or asset code, e.g. EUR"`
	To     string  `json:"to" jsonschema:"target currency or asset code, e.g. DZD"`
	Live   bool    `json:"live,omitempty" jsonschema:"use simulated live prices instead of the static table"`
	Strict bool    `json:"strict,omitempty" jsonschema:"fail on unknown codes instead of assuming a rate of 1"`
}

type ConvertOutput struct {
	Amount  float64 `json:"amount"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	Result  float64 `json:"result"`
	Rate    float64 `json:"rate"`
	Display string  `json:"display"`
	Source  string  `json:"source"`
}

type RatesInput struct {
	Live bool `json:"live,omitempty" jsonschema:"overlay simulated live prices"`
}

type RatesOutput struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

type LivePricesInput struct {
	ID string `json:"id,omitempty" jsonschema:"asset id; empty returns every tracked asset"`
}

type LivePrice struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Current    float64 `json:"current"`
	Previous   float64 `json:"previous"`
	Direction  string  `json:"direction"`
	ChangePct  float64 `json:"change_pct"`
	LastUpdate string  `json:"last_update"`
}

type LivePricesOutput struct {
	Base   string      `json:"base"`
	Prices []LivePrice `json:"prices"`
}

// New builds an MCP server with the convert, rates and live_prices tools.
func New(rates RateQuerier, logger *zap.Logger, version string) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tools{rates: rates, logger: logger}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "convert",
		Description: "Convert an amount between two currencies or assets through the Algerian dinar",
	}, t.convert)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rates",
		Description: "List DZD rates per unit of every supported currency and asset",
	}, t.listRates)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "live_prices",
		Description: "Get simulated live prices with previous value and direction",
	}, t.livePrices)
	return server
}

type tools struct {
	rates  RateQuerier
	logger *zap.Logger
}

func (t *tools) convert(ctx context.Context, _ *mcp.CallToolRequest, in ConvertInput) (*mcp.CallToolResult, ConvertOutput, error) {
	res, err := t.rates.Convert(ctx, domain.ConversionRequest{
		Amount: in.Amount,
		From:   domain.Code(in.From),
		To:     domain.Code(in.To),
	}, service.ConvertOptions{Live: in.Live, Strict: in.Strict})
	if err != nil {
		t.logger.Debug("mcp convert failed", zap.String("from", in.From), zap.String("to", in.To), zap.Error(err))
		return nil, ConvertOutput{}, err
	}
	return nil, ConvertOutput{
		Amount:  res.Amount,
		From:    string(res.From),
		To:      string(res.To),
		Result:  res.Result,
		Rate:    res.Rate,
		Display: res.Display,
		Source:  res.Source,
	}, nil
}

func (t *tools) listRates(ctx context.Context, _ *mcp.CallToolRequest, in RatesInput) (*mcp.CallToolResult, RatesOutput, error) {
	table := t.rates.Rates(ctx)
	if in.Live {
		table = t.rates.LiveTable(ctx)
	}
	out := RatesOutput{Base: string(t.rates.Base()), Rates: make(map[string]float64, len(table))}
	for code, rate := range table {
		out.Rates[string(code)] = rate
	}
	return nil, out, nil
}

func (t *tools) livePrices(ctx context.Context, _ *mcp.CallToolRequest, in LivePricesInput) (*mcp.CallToolResult, LivePricesOutput, error) {
	out := LivePricesOutput{Base: string(t.rates.Base())}
	if in.ID != "" {
		q, err := t.rates.LivePrice(ctx, in.ID)
		if err != nil {
			return nil, LivePricesOutput{}, err
		}
		out.Prices = []LivePrice{toLivePrice(*q)}
		return nil, out, nil
	}

	quotes, err := t.rates.LivePrices(ctx)
	if err != nil {
		return nil, LivePricesOutput{}, err
	}
	out.Prices = make([]LivePrice, 0, len(quotes))
	for _, q := range quotes {
		out.Prices = append(out.Prices, toLivePrice(q))
	}
	return nil, out, nil
}

func toLivePrice(q domain.LiveQuote) LivePrice {
	p := LivePrice{
		ID:        q.ID,
		Name:      q.Name,
		Category:  string(q.Category),
		Current:   q.Current,
		Previous:  q.Previous,
		Direction: string(q.Direction),
		ChangePct: q.ChangePct,
	}
	if !q.LastUpdate.IsZero() {
		p.LastUpdate = q.LastUpdate.UTC().Format(time.RFC3339)
	}
	return p
}
