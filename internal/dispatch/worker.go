package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/metrics"
)

// Outbox is the persistence the worker needs.
type Outbox interface {
	ClaimOutbox(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*domain.OutboxEntry, error)
	MarkOutboxDelivered(ctx context.Context, id string, at time.Time) error
	MarkOutboxSkipped(ctx context.Context, id, reason string, at time.Time) error
	RescheduleOutbox(ctx context.Context, id string, next time.Time, lastErr string) error
	MarkOutboxFailed(ctx context.Context, id, lastErr string, at time.Time) error
	PruneOutbox(ctx context.Context, before time.Time) (int, error)
	CountOutboxByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error)
}

// SettingsSource returns the unmasked settings in force.
type SettingsSource interface {
	Effective(ctx context.Context) (*domain.AISettings, error)
}

// Deliverer sends one payload to a target URL.
type Deliverer interface {
	Deliver(ctx context.Context, target string, payload []byte) error
}

// Skip reasons recorded in last_error.
const (
	ReasonDisabled = "enrichment disabled"
	ReasonNoTarget = "no webhook url configured"
)

// WorkerConfig tunes delivery and retry.
type WorkerConfig struct {
	DefaultWebhookURL string
	BatchSize         int
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	Lease             time.Duration
	Retention         time.Duration
}

// Worker drains the enrichment outbox.
type Worker struct {
	outbox   Outbox
	settings SettingsSource
	client   Deliverer
	cfg      WorkerConfig
	logger   *slog.Logger
	nudge    chan struct{}

	now    func() time.Time
	jitter func(time.Duration) time.Duration
}

// NewWorker creates an outbox worker.
func NewWorker(outbox Outbox, settings SettingsSource, client Deliverer, cfg WorkerConfig, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		settings: settings,
		client:   client,
		cfg:      cfg,
		logger:   logger,
		nudge:    make(chan struct{}, 1),
		now:      time.Now,
		jitter:   defaultJitter,
	}
}

// Nudge asks the worker to run soon. It never blocks.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// Nudges is the trigger channel for the scheduler.
func (w *Worker) Nudges() <-chan struct{} {
	return w.nudge
}

// Run processes batches until the outbox has no due entries or ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	defer w.refreshBacklog(ctx)

	for {
		n, err := w.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		if n < w.cfg.BatchSize || ctx.Err() != nil {
			return nil
		}
	}
}

// ProcessBatch claims and handles one batch, returning how many entries it claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	entries, err := w.outbox.ClaimOutbox(ctx, w.now(), w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	// One settings read per batch. A failure leaves every entry to retry.
	settings, err := w.settings.Effective(ctx)
	if err != nil {
		for _, e := range entries {
			w.retry(ctx, e, fmt.Errorf("load settings: %w", err))
		}
		return len(entries), nil
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			// Unhandled entries keep their lease and are reclaimed later.
			break
		}
		w.handle(ctx, e, settings)
	}
	return len(entries), nil
}

func (w *Worker) handle(ctx context.Context, e *domain.OutboxEntry, settings *domain.AISettings) {
	log := w.logger.With("outbox_id", e.ID, "note_id", e.NoteID, "attempt", e.Attempts)

	target, ok := settings.DispatchTarget(w.cfg.DefaultWebhookURL)
	if !ok {
		reason := ReasonNoTarget
		if !settings.Enabled {
			reason = ReasonDisabled
		}
		if err := w.outbox.MarkOutboxSkipped(ctx, e.ID, reason, w.now()); err != nil {
			log.Error("failed to mark outbox entry skipped", "error", err)
			return
		}
		metrics.RecordDispatch(metrics.ResultSkipped, 0)
		log.Debug("enrichment dispatch skipped", "reason", reason)
		return
	}

	payload, err := withCustomPrompt(e.Payload, settings.CustomPrompt)
	if err != nil {
		// A payload we cannot decode will never deliver.
		w.fail(ctx, e, err)
		return
	}

	start := time.Now()
	err = w.client.Deliver(ctx, target, payload)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordDispatch(w.retryOrFailResult(e), elapsed)
		w.retry(ctx, e, err)
		return
	}

	if err := w.outbox.MarkOutboxDelivered(ctx, e.ID, w.now()); err != nil {
		// The processor has the note; a redelivery after the lease expires is
		// absorbed by idempotent reconciliation.
		log.Error("failed to mark outbox entry delivered", "error", err)
		return
	}
	metrics.RecordDispatch(metrics.ResultDelivered, elapsed)
	log.Info("enrichment dispatched", "duration", elapsed)
}

func (w *Worker) retryOrFailResult(e *domain.OutboxEntry) string {
	if e.Attempts >= w.cfg.MaxAttempts {
		return metrics.ResultFailed
	}
	return metrics.ResultRetry
}

// retry reschedules with backoff, or marks failed once attempts are exhausted.
func (w *Worker) retry(ctx context.Context, e *domain.OutboxEntry, cause error) {
	if e.Attempts >= w.cfg.MaxAttempts {
		w.fail(ctx, e, cause)
		return
	}

	delay := w.Backoff(e.Attempts)
	next := w.now().Add(delay)
	if err := w.outbox.RescheduleOutbox(ctx, e.ID, next, cause.Error()); err != nil {
		w.logger.Error("failed to reschedule outbox entry", "outbox_id", e.ID, "error", err)
		return
	}
	w.logger.Warn("enrichment dispatch failed, will retry",
		"outbox_id", e.ID,
		"note_id", e.NoteID,
		"attempt", e.Attempts,
		"retry_in", delay,
		"error", cause)
}

func (w *Worker) fail(ctx context.Context, e *domain.OutboxEntry, cause error) {
	if err := w.outbox.MarkOutboxFailed(ctx, e.ID, cause.Error(), w.now()); err != nil {
		w.logger.Error("failed to mark outbox entry failed", "outbox_id", e.ID, "error", err)
		return
	}
	w.logger.Error("enrichment dispatch abandoned",
		"outbox_id", e.ID,
		"note_id", e.NoteID,
		"attempts", e.Attempts,
		"error", cause)
}

// Backoff returns the delay before the next attempt after attempts tries:
// base * 2^(attempts-1), capped at the configured maximum, plus jitter.
func (w *Worker) Backoff(attempts int) time.Duration {
	delay := w.cfg.BackoffBase
	for i := 1; i < attempts && delay < w.cfg.BackoffMax; i++ {
		delay *= 2
	}
	delay = min(delay, w.cfg.BackoffMax)
	return min(delay+w.jitter(delay), w.cfg.BackoffMax)
}

// defaultJitter adds up to 20% of d.
func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)/5 + 1))
}

// Prune deletes delivered and skipped entries older than the retention window.
func (w *Worker) Prune(ctx context.Context) error {
	n, err := w.outbox.PruneOutbox(ctx, w.now().Add(-w.cfg.Retention))
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	if n > 0 {
		w.logger.Info("pruned enrichment outbox", "deleted", n)
	}
	return nil
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	counts, err := w.outbox.CountOutboxByStatus(ctx)
	if err != nil {
		w.logger.Debug("failed to count outbox", "error", err)
		return
	}
	metrics.SetOutboxPending(counts[domain.OutboxPending] + counts[domain.OutboxProcessing])
}

// withCustomPrompt injects the admin prompt at delivery time so prompt edits
// apply to notes still waiting in the outbox.
func withCustomPrompt(payload []byte, prompt string) ([]byte, error) {
	var req domain.EnrichmentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode outbox payload: %w", err)
	}
	req.CustomPrompt = prompt
	return json.Marshal(req)
}
