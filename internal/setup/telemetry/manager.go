package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry/logger"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	ServiceAPI ServiceType = iota
	ServiceWorker
	ServiceExport
	ServiceMigration
	ServiceQueue
)

// ServiceVersion is reported with every trace.
const ServiceVersion = "0.4.0"

const sessionDirLayout = "2006-01-02_15-04-05"

// Manager owns the log directory of one process run and the loggers writing into it.
// Each run gets a timestamped session directory; old sessions are pruned on start.
type Manager struct {
	instanceID        string
	componentName     string
	currentSessionDir string
	logDir            string
	level             string
	maxLogsToKeep     int
	maxLogLines       int
	tracing           bool
	files             []*logger.CappedFile
}

// NewManager creates a new Manager instance.
func NewManager(
	serviceType ServiceType, logDir string, debugCfg *config.Debug, workerType string, workerID string,
) *Manager {
	return &Manager{
		instanceID:    uuid.New().String(),
		componentName: componentName(serviceType, workerType, workerID),
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
	}
}

func componentName(serviceType ServiceType, workerType, workerID string) string {
	switch serviceType {
	case ServiceAPI:
		return "api"
	case ServiceWorker:
		switch {
		case workerType != "" && workerID != "":
			return fmt.Sprintf("%s_worker_%s", workerType, workerID)
		case workerType != "":
			return workerType + "_worker"
		default:
			return "worker"
		}
	case ServiceExport:
		return "export"
	case ServiceMigration:
		return "migration"
	case ServiceQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// StartTracing configures the OpenTelemetry exporter when a DSN is configured.
func (lm *Manager) StartTracing(cfg *config.Telemetry) {
	if cfg.DSN == "" {
		return
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName("mangrove_"+lm.componentName),
		uptrace.WithServiceVersion(ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	lm.tracing = true
}

// Stop flushes traces and closes every log file opened by the manager.
func (lm *Manager) Stop(ctx context.Context) {
	if lm.tracing {
		_ = uptrace.Shutdown(ctx)
	}

	for _, file := range lm.files {
		_ = file.Sync()
		_ = file.Close()
	}
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "main.log"), true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "database.log"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger, dbLogger, nil
}

// GetWorkerLogger creates a logger writing to <name>.log in the session directory.
func (lm *Manager) GetWorkerLogger(name string) *zap.Logger {
	log, err := lm.initLogger(filepath.Join(lm.getOrCreateSessionDir(), name+".log"), true)
	if err != nil {
		return zap.NewNop()
	}

	return log
}

// GetCurrentSessionDir returns the current session directory.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.getOrCreateSessionDir()
}

// GetInstanceID returns the unique identifier for this process run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// setupLogDirectories prunes old sessions and creates the directory for this one.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	lm.currentSessionDir = filepath.Join(lm.logDir, time.Now().Format(sessionDirLayout))
	if err := os.MkdirAll(lm.currentSessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	return nil
}

func (lm *Manager) getOrCreateSessionDir() string {
	if lm.currentSessionDir != "" {
		return lm.currentSessionDir
	}

	sessionDir := filepath.Join(lm.logDir, time.Now().Format(sessionDirLayout))
	if err := os.MkdirAll(sessionDir, os.ModePerm); err != nil {
		return lm.logDir
	}

	lm.currentSessionDir = sessionDir

	return sessionDir
}

// initLogger creates a zap logger writing to path. Error entries are mirrored
// as spans when withTracing is set.
func (lm *Manager) initLogger(path string, withTracing bool) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	file, err := logger.OpenCappedFile(path, lm.maxLogLines)
	if err != nil {
		return nil, err
	}
	lm.files = append(lm.files, file)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(file), zapLevel),
	}

	if withTracing && lm.tracing {
		cores = append(cores, NewCore(zapcore.ErrorLevel))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("instance", lm.instanceID)),
	), nil
}

// rotateLogSessions keeps only the newest maxLogsToKeep session directories.
func (lm *Manager) rotateLogSessions() error {
	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	if lm.maxLogsToKeep <= 0 || len(sessions) < lm.maxLogsToKeep {
		return nil
	}

	modTime := func(path string) time.Time {
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}
		}
		return info.ModTime()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return modTime(sessions[i]).Before(modTime(sessions[j]))
	})

	// Leave room for the session about to be created.
	toDelete := len(sessions) - lm.maxLogsToKeep + 1
	for _, session := range sessions[:toDelete] {
		if err := os.RemoveAll(session); err != nil {
			return err
		}
	}

	return nil
}
