package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"bikestreets_backend/internal/adapters/storage"
	"bikestreets_backend/platform/config"
	"bikestreets_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	archiveFolder      = "debuglogs"
	defaultCleanupSpec = "@every 6h"
)

// Cleaner prunes old debug log entries.
type Cleaner interface {
	Cleanup(maxAge time.Duration) int
}

// WorkerDeps are the collaborators of the task handlers. Storage may be nil,
// in which case archive tasks are skipped.
type WorkerDeps struct {
	Cleaner Cleaner
	Storage storage.StorageService
	Bucket  string
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	queue     string
	deps      WorkerDeps
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, deps WorkerDeps, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := queueName(cfg)

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		queue:     queue,
		deps:      deps,
		log:       log.WithComponent("scheduler"),
	}

	mux.HandleFunc(TaskDebugLogArchive, w.handleDebugLogArchive)
	mux.HandleFunc(TaskDebugLogCleanup, w.handleDebugLogCleanup)

	return w, nil
}

// ScheduleCleanup registers a periodic cleanup task. An empty spec uses
// every six hours.
func (w *Worker) ScheduleCleanup(spec string, maxAge time.Duration) error {
	if spec == "" {
		spec = defaultCleanupSpec
	}
	task, err := NewDebugLogCleanupTask(DebugLogCleanupPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return err
	}
	_, err = w.scheduler.Register(spec, task, asynq.Queue(w.queue))
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if err := w.scheduler.Start(); err != nil {
		w.log.Error("periodic task scheduler failed to start", "error", err)
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleDebugLogArchive(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDebugLogArchivePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return archiveEntry(ctx, w.deps, payload, w.log)
}

func (w *Worker) handleDebugLogCleanup(_ context.Context, task *asynq.Task) error {
	payload, err := ParseDebugLogCleanupPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if w.deps.Cleaner == nil {
		return nil
	}
	removed := w.deps.Cleaner.Cleanup(payload.MaxAge())
	w.log.Info("debug log cleanup task finished", "removed", removed)
	return nil
}

// archiveEntry uploads one entry file. An entry that no longer exists was
// cleaned up before the task ran and is not retried.
func archiveEntry(ctx context.Context, deps WorkerDeps, payload DebugLogArchivePayload, log *logger.Logger) error {
	if deps.Storage == nil {
		return nil
	}

	f, err := os.Open(payload.Path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("debug log entry vanished before archiving", "path", payload.Path)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	key, err := deps.Storage.UploadFile(ctx, deps.Bucket, archiveFolder, filepath.Base(payload.Path), "application/json", f, info.Size())
	if err != nil {
		return err
	}
	log.Info("debug log entry archived",
		"key", key,
		"origin", payload.OriginName,
		"destination", payload.DestinationName,
		"routes", payload.Routes,
	)
	return nil
}
