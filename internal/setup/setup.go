package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"github.com/mangrovewatch/mangrove/internal/ai"
	"github.com/mangrovewatch/mangrove/internal/database"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/redis"
	"github.com/mangrovewatch/mangrove/internal/scoring"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	StatusClient rueidis.Client     // Redis client for worker status reporting
	Queue        *queue.Manager     // Analysis job queue
	Analyzer     *ai.Adapter        // Image classifier behind the result adapter
	Scoring      *scoring.Engine    // Reward policy
	LogManager   *telemetry.Manager // Log management system
	genaiClient  *genai.Client
}

// InitializeApp bootstraps all application dependencies in the correct order.
// Workers can provide type and ID information for service identification.
func InitializeApp(
	ctx context.Context, serviceType telemetry.ServiceType, logDir string, workerInfo ...string,
) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	var workerType, workerID string
	if len(workerInfo) >= 2 {
		workerType = workerInfo[0]
		workerID = workerInfo[1]
	}

	// Logging and tracing come first to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, workerType, workerID)
	logManager.StartTracing(&cfg.Common.Telemetry)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	db, err := connectDatabase(ctx, cfg, dbLogger)
	if err != nil {
		redisManager.Close()
		return nil, err
	}

	statusClient, err := redisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return nil, err
	}

	queueClient, err := redisManager.GetClient(redis.QueueDBIndex)
	if err != nil {
		return nil, err
	}

	jobs := queue.NewManager(queueClient, logger)
	db.Service().Submission().SetQueue(jobs)

	// A missing API key leaves the client nil; every analysis then fails
	// with a configuration error instead of blocking startup.
	var genaiClient *genai.Client
	if cfg.Common.Gemini.APIKey != "" {
		genaiClient, err = genai.NewClient(ctx, option.WithAPIKey(cfg.Common.Gemini.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
	} else {
		logger.Warn("Gemini API key is not configured, analyses will fail")
	}

	classifier := ai.NewGeminiClassifier(genaiClient, &cfg.Common.Gemini, &cfg.Common.CircuitBreaker, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		StatusClient: statusClient,
		Queue:        jobs,
		Analyzer:     ai.NewAdapter(classifier, logger),
		Scoring:      scoring.NewEngine(cfg.Common.Scoring.ApprovalThreshold),
		LogManager:   logManager,
		genaiClient:  genaiClient,
	}, nil
}

// Cleanup shuts components down in reverse initialization order.
// Errors are logged so every component gets a cleanup attempt.
func (s *App) Cleanup(ctx context.Context) {
	if s.genaiClient != nil {
		if err := s.genaiClient.Close(); err != nil {
			s.Logger.Error("Failed to close gemini client", zap.Error(err))
		}
	}

	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Redis goes last as other components might need it during cleanup
	s.RedisManager.Close()

	s.LogManager.Stop(ctx)
}

// connectDatabase opens the database and refuses to start on a stale schema.
func connectDatabase(ctx context.Context, cfg *config.Config, dbLogger *zap.Logger) (database.Client, error) {
	return database.Open(ctx, &cfg.Common.PostgreSQL, database.Options{
		PhoneRegion:   cfg.API.Registration.DefaultRegion,
		RequireSchema: true,
	}, dbLogger)
}
