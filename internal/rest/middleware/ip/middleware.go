package ip

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mangrovewatch/mangrove/internal/rest/response"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type ipCtxKey struct{}

// UnknownIP is returned when no valid IP can be determined.
const UnknownIP = "unknown"

// FromContext retrieves the client IP from the context.
func FromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok {
		return ip
	}
	return UnknownIP
}

// WithIP stores a client IP in the context.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipCtxKey{}, ip)
}

// Middleware handles IP detection and stores it in the context.
type Middleware struct {
	trustedHeader string
	logger        *zap.Logger
}

// New creates a new IP middleware. When trustedHeader is set the client IP
// is read from it before falling back to the remote address.
func New(logger *zap.Logger, trustedHeader string) *Middleware {
	return &Middleware{
		trustedHeader: trustedHeader,
		logger:        logger.Named("ip_middleware"),
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler for IP detection.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ip := m.ClientIP(req.Request)
		if ip == UnknownIP {
			return response.Error(w, http.StatusForbidden, "invalid client address")
		}

		return next(w, req.WithContext(WithIP(req.Context(), ip)))
	}
}

// ClientIP extracts the client IP from the request.
func (m *Middleware) ClientIP(r *http.Request) string {
	if m.trustedHeader != "" {
		if value := r.Header.Get(m.trustedHeader); value != "" {
			if ip := forwardedIP(value); ip != UnknownIP {
				return ip
			}
			m.logger.Debug("Ignoring invalid proxy header",
				zap.String("header", m.trustedHeader),
				zap.String("value", value))
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return validate(host)
}

// forwardedIP takes the closest valid address from a comma separated list.
func forwardedIP(value string) string {
	ips := strings.Split(value, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		if ip := validate(strings.TrimSpace(ips[i])); ip != UnknownIP {
			return ip
		}
	}
	return UnknownIP
}

func validate(raw string) string {
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return UnknownIP
	}
	return parsed.String()
}
