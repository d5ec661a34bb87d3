package generate

import (
	"context"
	"log/slog"

	"github.com/sparklabs/spark/internal/domain"
)

// Watcher subscribes to record-store change events and feeds every newly
// created pending record into the orchestrator. Processing is sequential:
// the fallback chain's ordering guarantees only hold without concurrent
// attempts, and pacing doubles as rate limiting.
type Watcher struct {
	store        domain.RecordStore
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewWatcher creates a Watcher.
func NewWatcher(store domain.RecordStore, orchestrator *Orchestrator, logger *slog.Logger) *Watcher {
	return &Watcher{store: store, orchestrator: orchestrator, logger: logger}
}

// Start consumes store events until the context is cancelled. A processing
// failure is scoped to one record and never stops the loop.
func (w *Watcher) Start(ctx context.Context) error {
	events, cancel := w.store.Subscribe(64)
	defer cancel()

	w.logger.Info("generation watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type != domain.RecordCreated || ev.Record.Status != domain.StatusPending {
				continue
			}
			rec := ev.Record
			if err := w.orchestrator.Process(ctx, &rec); err != nil {
				w.logger.Error("record processing failed", "id", rec.ID, "error", err)
			}
		}
	}
}
