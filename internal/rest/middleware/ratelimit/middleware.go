package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove/internal/rest/middleware/ip"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	errBlocked    = "temporarily blocked for repeated rate limit violations"
	errRateLimit  = "rate limit exceeded"
	headerRetryAt = "Retry-After"
)

type limiterState struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	strikes      int       // Number of times client has violated rate limit
	blockedUntil time.Time // Time until client is blocked for repeated violations
}

// Middleware implements per-IP rate limiting for API requests.
type Middleware struct {
	limiters *utils.TTLMap[string, *limiterState]
	config   *config.RateLimit
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new rate limiting middleware.
func New(cfg *config.RateLimit, logger *zap.Logger) *Middleware {
	// Use the longer of block duration or burst window * 2 for TTL
	ttl := time.Second * time.Duration(max(cfg.BurstSize*2, 1))
	if blockTTL := time.Second * time.Duration(cfg.BlockDuration*2); blockTTL > ttl {
		ttl = blockTTL
	}

	return &Middleware{
		limiters: utils.NewTTLMap[string, *limiterState](ttl),
		config:   cfg,
		logger:   logger.Named("ratelimit_middleware"),
		now:      time.Now,
	}
}

// Close stops the limiter cleanup.
func (m *Middleware) Close() {
	m.limiters.Close()
}

// AsRESTMiddleware returns a bunrouter middleware handler for rate limiting.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		clientIP := ip.FromContext(req.Context())

		allowed, retryAfter, message := m.Allow(clientIP)
		if !allowed {
			if retryAfter > 0 {
				w.Header().Set(headerRetryAt, fmt.Sprintf("%.0f", retryAfter.Seconds()))
			}
			return response.Error(w, http.StatusTooManyRequests, message)
		}

		return next(w, req)
	}
}

// Allow checks if a request from clientIP should be served and updates violation tracking.
func (m *Middleware) Allow(clientIP string) (bool, time.Duration, string) {
	state := m.limiters.GetOrCreate(clientIP, func() *limiterState {
		return &limiterState{
			limiter: rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.BurstSize),
		}
	})

	state.mu.Lock()
	defer state.mu.Unlock()

	now := m.now()

	// Check if client is blocked
	if !state.blockedUntil.IsZero() && now.Before(state.blockedUntil) {
		retryAfter := state.blockedUntil.Sub(now).Round(time.Second)
		m.logger.Debug("Client is temporarily blocked",
			zap.String("ip", clientIP),
			zap.Duration("retry_after", retryAfter))
		return false, retryAfter, errBlocked
	}

	// Try to reserve a token
	reservation := state.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return m.strike(state, clientIP, now, 0)
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return m.strike(state, clientIP, now, delay)
	}

	state.strikes = 0

	return true, 0, ""
}

// strike records a violation and blocks the client once the strike limit is reached.
func (m *Middleware) strike(state *limiterState, clientIP string, now time.Time, delay time.Duration) (bool, time.Duration, string) {
	state.strikes++

	if m.config.StrikeLimit > 0 && state.strikes >= m.config.StrikeLimit {
		blockDuration := time.Duration(m.config.BlockDuration) * time.Second
		state.blockedUntil = now.Add(blockDuration)
		state.strikes = 0

		m.logger.Debug("Client exceeded strike limit and is now blocked",
			zap.String("ip", clientIP),
			zap.Int("strikes", m.config.StrikeLimit),
			zap.Duration("block_duration", blockDuration))

		return false, blockDuration, errBlocked
	}

	m.logger.Debug("Rate limit exceeded",
		zap.String("ip", clientIP),
		zap.Duration("delay", delay),
		zap.Int("strikes", state.strikes))

	return false, delay, errRateLimit
}
