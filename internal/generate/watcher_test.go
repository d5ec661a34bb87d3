package generate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklabs/spark/internal/domain"
)

func TestWatcherProcessesCreatedPendingRecords(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{
		responses: map[generatorCall]string{
			{model: "model-a", credential: "key-1"}: goodResponse,
		},
	}
	w := NewWatcher(store, NewOrchestrator(store, gen, testConfig(), discard()), discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Give the watcher a moment to register its subscription.
	time.Sleep(50 * time.Millisecond)
	rec := createPending(t, store, 250)

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), rec.ID)
		return err == nil && got.Status == domain.StatusGenerated
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherIgnoresUpdateEvents(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	w := NewWatcher(store, NewOrchestrator(store, gen, testConfig(), discard()), discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	rec := createPending(t, store, 199)

	// The rejection below emits an update event the watcher must not re-feed
	// into the orchestrator.
	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), rec.ID)
		return err == nil && got.Status == domain.StatusRejected
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, gen.calls)
}
