package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/logger"
	"github.com/listenupapp/notes-server/internal/metrics"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the sqlite store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := sqlite.Open(cfg.Database.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	if counts, err := st.CountOutboxByStatus(context.Background()); err == nil {
		metrics.SetOutboxPending(counts[domain.OutboxPending] + counts[domain.OutboxProcessing])
		log.Info("Database initialized",
			"path", cfg.Database.Path,
			"outbox_pending", counts[domain.OutboxPending],
			"outbox_failed", counts[domain.OutboxFailed],
		)
	}

	return &StoreHandle{Store: st}, nil
}
