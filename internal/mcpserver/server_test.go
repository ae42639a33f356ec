package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dinar-ticker/internal/conversion"
	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/ratelimit"
	"dinar-ticker/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type stubFeed map[string]domain.PriceState

func (f stubFeed) Snapshot() map[string]domain.PriceState { return f }

func connect(t *testing.T, feed service.LiveFeed) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	rates := service.NewRateService(tracer, nil, conversion.New(), feed, nil)
	server := New(rates, nil, "test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func decode(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.False(t, res.IsError, "tool returned an error: %+v", res.Content)
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestListTools(t *testing.T) {
	cs := connect(t, nil)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"convert", "rates", "live_prices"}, names)
}

func TestConvertTool(t *testing.T) {
	cs := connect(t, nil)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "convert",
		Arguments: map[string]any{"amount": 100, "from": "EUR", "to": "USD"},
	})
	require.NoError(t, err)

	var out ConvertOutput
	decode(t, res, &out)
	assert.Equal(t, "90.48", out.Display)
	assert.Equal(t, "static", out.Source)
	assert.InDelta(t, 100.0*228/252, out.Result, 1e-9)
}

func TestConvertToolStrictUnknownCode(t *testing.T) {
	cs := connect(t, nil)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "convert",
		Arguments: map[string]any{"amount": 1, "from": "XYZ", "to": "DZD", "strict": true},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "rate unavailable for XYZ")
}

func TestRatesTool(t *testing.T) {
	cs := connect(t, stubFeed{"EUR": {Current: 260, Previous: 252, Direction: domain.DirectionUp}})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "rates", Arguments: map[string]any{}})
	require.NoError(t, err)
	var out RatesOutput
	decode(t, res, &out)
	assert.Equal(t, "DZD", out.Base)
	assert.Equal(t, 252.0, out.Rates["EUR"])

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "rates", Arguments: map[string]any{"live": true}})
	require.NoError(t, err)
	decode(t, res, &out)
	assert.Equal(t, 260.0, out.Rates["EUR"])
}

func TestLivePricesTool(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cs := connect(t, stubFeed{
		"EUR": {Current: 253, Previous: 252, Direction: domain.DirectionUp, LastUpdate: updated},
		"BTC": {Current: 15400000, Previous: 15500000, Direction: domain.DirectionDown},
	})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "live_prices", Arguments: map[string]any{}})
	require.NoError(t, err)
	var out LivePricesOutput
	decode(t, res, &out)
	require.Len(t, out.Prices, 2)
	assert.Equal(t, "BTC", out.Prices[0].ID)
	assert.Equal(t, "down", out.Prices[0].Direction)

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "live_prices", Arguments: map[string]any{"id": "eur"}})
	require.NoError(t, err)
	decode(t, res, &out)
	require.Len(t, out.Prices, 1)
	assert.Equal(t, "Euro", out.Prices[0].Name)
	assert.Equal(t, "2026-01-02T03:04:05Z", out.Prices[0].LastUpdate)
}

func TestLivePricesToolUnavailable(t *testing.T) {
	cs := connect(t, nil)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "live_prices", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHTTPHandlerAuth(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	h := HTTPHandler(server, "secret", ratelimit.PerMinute(100), nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHTTPHandlerRateLimit(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	h := HTTPHandler(server, "", ratelimit.New(1, time.Hour), nil)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
