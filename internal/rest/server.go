// Package rest serves the public and admin HTTP API.
package rest

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/rest/handler"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/auth"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/header"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/ip"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/ratelimit"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Services are the backends the API is built on.
type Services struct {
	Users       handler.UserService
	Sessions    handler.SessionService
	Submissions handler.SubmissionService
	Reviews     handler.ReviewService
	Leaderboard handler.LeaderboardService
	Stats       handler.StatsService
	Views       handler.ViewService
	Charts      handler.ChartStore
	Workers     handler.WorkerMonitor
	Queue       handler.QueueMonitor

	// SessionStore and UserStore resolve bearer tokens.
	SessionStore auth.SessionStore
	UserStore    auth.UserStore
}

// Server implements the REST API service.
type Server struct {
	handler     http.Handler
	rateLimiter *ratelimit.Middleware
}

// NewServer creates a new REST API server.
func NewServer(services *Services, cfg *config.APIConfig, logger *zap.Logger) *Server {
	authHandler := handler.NewAuthHandler(services.Users, services.Sessions, logger)
	userHandler := handler.NewUserHandler(services.Users, services.Leaderboard, logger)
	leaderboardHandler := handler.NewLeaderboardHandler(services.Leaderboard, logger)
	reportHandler := handler.NewSubmissionHandler(services.Submissions, enum.SubmissionKindReport, logger)
	uploadHandler := handler.NewSubmissionHandler(services.Submissions, enum.SubmissionKindUpload, logger)
	adminHandler := handler.NewAdminHandler(handler.AdminDeps{
		Users:       services.Users,
		Sessions:    services.Sessions,
		Submissions: services.Submissions,
		Reviews:     services.Reviews,
		Stats:       services.Stats,
		Views:       services.Views,
		Charts:      services.Charts,
		Workers:     services.Workers,
		Queue:       services.Queue,
	}, logger)

	// Create middleware instances
	headerMiddleware := header.New(logger, cfg.Server.AllowedOrigins)
	ipMiddleware := ip.New(logger, cfg.Server.TrustedProxyHeader)
	rateLimiter := ratelimit.New(&cfg.RateLimit, logger)
	authMiddleware := auth.New(services.SessionStore, services.UserStore, logger)

	router := bunrouter.New(
		bunrouter.WithNotFoundHandler(func(w http.ResponseWriter, _ bunrouter.Request) error {
			return response.Error(w, http.StatusNotFound, "route not found")
		}),
		bunrouter.WithMethodNotAllowedHandler(func(w http.ResponseWriter, _ bunrouter.Request) error {
			return response.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		}),
	)

	router.GET("/healthz", func(w http.ResponseWriter, _ bunrouter.Request) error {
		return response.Message(w, http.StatusOK, "ok")
	})

	router.Use(
		ipMiddleware.AsRESTMiddleware,
		rateLimiter.AsRESTMiddleware,
	).WithGroup("/v1", func(g *bunrouter.Group) {
		// Public routes
		g.POST("/auth/register", authHandler.Register)
		g.POST("/auth/login", authHandler.Login)
		g.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		g.GET("/map", reportHandler.GetMap)
		g.GET("/reports", reportHandler.List)
		g.GET("/reports/:id", reportHandler.Get)
		g.GET("/uploads", uploadHandler.List)
		g.GET("/uploads/:id", uploadHandler.Get)

		// Authenticated routes
		g.Use(authMiddleware.AsRESTMiddleware).WithGroup("", func(g *bunrouter.Group) {
			g.POST("/auth/logout", authHandler.Logout)

			g.GET("/users/me", userHandler.GetMe)
			g.PUT("/users/me", userHandler.UpdateMe)
			g.GET("/users/:id/rank", userHandler.GetRank)

			g.POST("/reports", reportHandler.Create)
			g.PUT("/reports/:id", reportHandler.Update)
			g.DELETE("/reports/:id", reportHandler.Delete)

			g.POST("/uploads", uploadHandler.Create)
			g.PUT("/uploads/:id", uploadHandler.Update)
			g.DELETE("/uploads/:id", uploadHandler.Delete)
			g.GET("/uploads/:id/ai-analysis", uploadHandler.GetAnalysis)
			g.POST("/uploads/:id/flag", uploadHandler.Flag)

			// Admin routes
			g.Use(authMiddleware.RequireAdmin).WithGroup("/admin", func(g *bunrouter.Group) {
				g.GET("/users", adminHandler.ListUsers)
				g.POST("/users/:id/ban", adminHandler.BanUser)
				g.GET("/submissions", adminHandler.ListSubmissions)
				g.POST("/submissions/:id/reanalyze", adminHandler.Reanalyze)
				g.GET("/reports/pending", adminHandler.PendingReports)
				g.PUT("/reports/:id/validate", adminHandler.ValidateReport)
				g.PUT("/reports/:id/resolve", adminHandler.ResolveReport)
				g.PUT("/uploads/:id/review", adminHandler.ReviewUpload)
				g.GET("/stats", adminHandler.GetStats)
				g.GET("/stats/chart", adminHandler.GetStatsChart)
				g.GET("/workers", adminHandler.ListWorkers)
			})
		})
	})

	return &Server{
		// Add CORS handling and gzip compression
		handler:     gzhttp.GzipHandler(headerMiddleware.AsHTTPMiddleware(router)),
		rateLimiter: rateLimiter,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases the rate limiter state.
func (s *Server) Close() {
	s.rateLimiter.Close()
}
