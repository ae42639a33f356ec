package mcpserver

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"dinar-ticker/internal/ratelimit"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// HTTPHandler serves the MCP server over streamable HTTP. A non-empty token
// requires "Authorization: Bearer <token>". Requests are limited per client
// address.
func HTTPHandler(server *mcp.Server, token string, limiter *ratelimit.Limiter, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || provided == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), []byte(token)) != 1 {
				http.Error(w, "invalid bearer token", http.StatusForbidden)
				return
			}
		}

		if !limiter.Allow(clientKey(r)) {
			logger.Debug("mcp request rate limited", zap.String("remote", r.RemoteAddr))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		mcpHandler.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
