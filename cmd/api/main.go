package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bikestreets_backend/internal/debuglog"
	"bikestreets_backend/internal/diagnostics"
	"bikestreets_backend/internal/directions"
	"bikestreets_backend/internal/events"
	apphttp "bikestreets_backend/internal/http"
	"bikestreets_backend/internal/http/router"
	"bikestreets_backend/internal/navigation"
	"bikestreets_backend/internal/notification"
	"bikestreets_backend/internal/notification/sse"
	"bikestreets_backend/internal/presentation"
	"bikestreets_backend/internal/scheduler"
	"bikestreets_backend/internal/session"
	"bikestreets_backend/platform/config"
	"bikestreets_backend/platform/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "directions_host", cfg.DirectionsHost)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Close()

	store := debuglog.NewStore(cfg, log)
	store.SetEventBus(eventBus)
	if removed := store.Cleanup(0); removed > 0 {
		log.Info("removed expired debug log entries at startup", "removed", removed)
	}

	var health apphttp.HealthChecker
	if cfg.GetRedisURL() != "" {
		closeScheduler := initArchiveScheduler(cfg, eventBus, log)
		defer closeScheduler()

		redisHealth, err := scheduler.NewRedisHealth(cfg)
		if err != nil {
			log.Error("failed to initialize redis health check", "error", err)
			panic("failed to initialize redis health check: " + err.Error())
		}
		defer func() { _ = redisHealth.Close() }()
		if err := withRetry(ctx, log, "redis ping", 5, 2*time.Second, func() error {
			return redisHealth.Ping(ctx)
		}); err != nil {
			log.Warn("redis not reachable yet; readiness will report it", "error", err)
		}
		health = redisHealth
	} else {
		log.Warn("REDIS_URL not configured; debug log archiving disabled, cleaning up in-process")
		go scheduler.NewDebugLogCleanup(store, log, time.Hour, 0).Run(ctx)
	}

	directionsClient := directions.NewClient(cfg, nil, store, log)

	// ========================================================================
	// Session Layer
	// ========================================================================

	loop := session.NewLoop(log)
	machine := session.NewMachine(log)
	controller := session.NewController(ctx, loop, machine, directionsClient, eventBus, log)

	reactor := presentation.NewReactor()
	machine.Subscribe(reactor.Observe)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("session loop stopped", "error", err)
		}
	}()

	// ========================================================================
	// Modules
	// ========================================================================

	stream := sse.New(log)
	notificationModule := notification.New(stream, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetSnapshotProvider(func(ctx context.Context) (interface{}, error) {
		return controller.Snapshot(ctx)
	})
	reactor.OnChange(notificationModule.ViewChanged)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			navigation.NewModule(controller, reactor),
			diagnostics.NewModule(store),
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}

	// Event streams never end on their own; close them so Shutdown can drain.
	stream.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	stop()
	<-loopDone
	controller.Wait()
	directionsClient.Wait()
	log.Info("server stopped")
}

func initArchiveScheduler(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) func() {
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize archive scheduler client", "error", err)
		return func() {}
	}

	bus.Subscribe(events.DebugLogWritten{}.EventName(), scheduler.ArchiveOnWrite(client))
	return func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
