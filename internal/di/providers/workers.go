package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/dispatch"
	"github.com/listenupapp/notes-server/internal/logger"
	"github.com/listenupapp/notes-server/internal/metrics"
	"github.com/listenupapp/notes-server/internal/ratelimit"
	"github.com/listenupapp/notes-server/internal/scheduler"
	"github.com/listenupapp/notes-server/internal/service"
)

const (
	// dispatchHostRPS bounds outbound deliveries to one webhook host.
	dispatchHostRPS   = 5
	dispatchHostBurst = 10

	pruneInterval   = time.Hour
	sseStatInterval = 15 * time.Second
)

// DispatchWorkerHandle wraps the outbox worker and its host limiter.
type DispatchWorkerHandle struct {
	*dispatch.Worker
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *DispatchWorkerHandle) Shutdown() error {
	h.limiter.Stop()
	return nil
}

// ProvideDispatchWorker provides the enrichment outbox worker.
func ProvideDispatchWorker(i do.Injector) (*DispatchWorkerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	settings := do.MustInvoke[*service.SettingsService](i)
	log := do.MustInvoke[*logger.Logger](i)

	limiter := ratelimit.New(dispatchHostRPS, dispatchHostBurst)
	client := dispatch.NewClient(cfg.Enrichment.RequestTimeout, limiter)

	worker := dispatch.NewWorker(storeHandle.Store, settings, client, dispatch.WorkerConfig{
		DefaultWebhookURL: cfg.Enrichment.DefaultWebhookURL,
		BatchSize:         cfg.Enrichment.BatchSize,
		MaxAttempts:       cfg.Enrichment.MaxAttempts,
		BackoffBase:       cfg.Enrichment.BackoffBase,
		BackoffMax:        cfg.Enrichment.BackoffMax,
		Lease:             cfg.Enrichment.LeaseDuration,
		Retention:         cfg.Enrichment.Retention,
	}, log.Logger)

	return &DispatchWorkerHandle{Worker: worker, limiter: limiter}, nil
}

// SchedulerHandle runs the background jobs.
type SchedulerHandle struct {
	*scheduler.Scheduler
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.cancel()
	h.Scheduler.Shutdown()
	return nil
}

// ProvideScheduler starts the dispatch, prune and stats jobs.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	worker := do.MustInvoke[*DispatchWorkerHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	s := scheduler.New(log.Logger)
	s.Add(scheduler.Job{
		Name:     "enrichment-dispatch",
		Interval: cfg.Enrichment.PollInterval,
		Timeout:  cfg.Enrichment.LeaseDuration,
		Fn:       worker.Run,
		Trigger:  worker.Nudges(),
	})
	s.Add(scheduler.Job{
		Name:     "outbox-prune",
		Interval: pruneInterval,
		Timeout:  time.Minute,
		Fn:       worker.Prune,
	})
	s.Add(scheduler.Job{
		Name:     "sse-stats",
		Interval: sseStatInterval,
		Timeout:  time.Second,
		Fn: func(context.Context) error {
			metrics.SetSSEClients(sseHandle.ClientCount())
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	log.Info("Background jobs started",
		"poll_interval", cfg.Enrichment.PollInterval,
		"max_attempts", cfg.Enrichment.MaxAttempts,
	)

	return &SchedulerHandle{Scheduler: s, cancel: cancel}, nil
}
