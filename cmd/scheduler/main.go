package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bikestreets_backend/internal/adapters/storage"
	"bikestreets_backend/internal/debuglog"
	"bikestreets_backend/internal/scheduler"
	"bikestreets_backend/platform/config"
	"bikestreets_backend/platform/logger"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "debug_log_dir", cfg.DebugLogDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The worker must share DEBUG_LOG_DIR with the API to find the entries it archives.
	deps := scheduler.WorkerDeps{
		Cleaner: debuglog.NewStore(cfg, log),
		Bucket:  cfg.GetMinioBucketDebugLogs(),
	}

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage", "error", err)
			panic("failed to initialize storage: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, "debug logs", cfg.GetMinioBucketDebugLogs())
		deps.Storage = storageSvc
	} else {
		log.Warn("MINIO_ENDPOINT not configured; archive tasks will be skipped")
	}

	worker, err := scheduler.NewWorker(cfg, deps, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	cleanupInterval := getDurationEnv("DEBUG_LOG_CLEANUP_INTERVAL", 6*time.Hour)
	if err := worker.ScheduleCleanup("@every "+cleanupInterval.String(), cfg.DebugLogMaxAge); err != nil {
		log.Error("failed to schedule debug log cleanup", "error", err)
		panic("failed to schedule debug log cleanup: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
