package header

import (
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
)

const (
	allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowedHeaders = "Authorization, Content-Type"
	maxAge         = "600"
)

// Middleware sets CORS and security headers and answers preflight requests.
type Middleware struct {
	origins []string
	logger  *zap.Logger
}

// New creates a new header middleware. An empty origin list allows any origin.
func New(logger *zap.Logger, origins []string) *Middleware {
	return &Middleware{
		origins: origins,
		logger:  logger.Named("header_middleware"),
	}
}

// AsHTTPMiddleware wraps the router so that preflight requests never reach route matching.
func (m *Middleware) AsHTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")

		if origin := r.Header.Get("Origin"); origin != "" {
			h.Add("Vary", "Origin")

			if !m.allowed(origin) {
				m.logger.Debug("Rejected CORS origin", zap.String("origin", origin))
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) allowed(origin string) bool {
	if len(m.origins) == 0 {
		return true
	}
	return slices.ContainsFunc(m.origins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin)
	})
}
