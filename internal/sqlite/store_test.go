package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklabs/spark/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func pendingRecord(permalink string, score int) *domain.ReplyRecord {
	return &domain.ReplyRecord{
		PermalinkURL: permalink,
		AuthorName:   "Alice Example",
		BodyText:     "a post worth replying to",
		Metrics:      domain.EngagementMetrics{LikeCount: 100, RepostCount: 10, ReplyCount: 2, ViewCount: 5000},
		Score:        score,
		Status:       domain.StatusPending,
		SourceCreatedAt: time.Now().Add(-5 * time.Minute).UTC().
			Truncate(time.Millisecond),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := pendingRecord("https://x.com/a/status/1", 250)
	require.NoError(t, store.Create(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.PermalinkURL, got.PermalinkURL)
	assert.Equal(t, rec.Metrics, got.Metrics)
	assert.Equal(t, 250, got.Score)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, []string{}, got.Suggestions)
	assert.Equal(t, rec.SourceCreatedAt, got.SourceCreatedAt)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveGeneratedIsConditional(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := pendingRecord("https://x.com/a/status/2", 250)
	require.NoError(t, store.Create(ctx, rec))

	suggestions := []string{"reply one", "reply two", "reply three"}
	require.NoError(t, store.ResolveGenerated(ctx, rec.ID, "IndieDev", suggestions, "gemini-2.5-flash", 2))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGenerated, got.Status)
	assert.Equal(t, "IndieDev", got.Topic)
	assert.Equal(t, suggestions, got.Suggestions)
	assert.Equal(t, "gemini-2.5-flash", got.UsedModel)
	assert.Equal(t, 2, got.UsedCredentialIndex)

	// A second resolution finds the record already settled.
	err = store.ResolveError(ctx, rec.ID, "should not apply")
	assert.ErrorIs(t, err, domain.ErrNotPending)

	got, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGenerated, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestResolveRejectedAndError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rejected := pendingRecord("https://x.com/a/status/3", 10)
	require.NoError(t, store.Create(ctx, rejected))
	require.NoError(t, store.ResolveRejected(ctx, rejected.ID, "SaaS"))

	got, err := store.Get(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Equal(t, "SaaS", got.Topic)

	failed := pendingRecord("https://x.com/a/status/4", 300)
	require.NoError(t, store.Create(ctx, failed))
	require.NoError(t, store.ResolveError(ctx, failed.ID, "all generation fallbacks exhausted"))

	got, err = store.Get(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, "all generation fallbacks exhausted", got.ErrorMessage)
	assert.Empty(t, got.UsedModel)
}

func TestMarkPostedRequiresGenerated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := pendingRecord("https://x.com/a/status/5", 250)
	require.NoError(t, store.Create(ctx, rec))

	assert.ErrorIs(t, store.MarkPosted(ctx, rec.ID), domain.ErrNotPending)

	require.NoError(t, store.ResolveGenerated(ctx, rec.ID, "Stocks", []string{"a"}, "gemini-2.5-flash", 1))
	require.NoError(t, store.MarkPosted(ctx, rec.ID))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPosted, got.Status)
}

func TestDeleteByPermalink(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := pendingRecord("https://x.com/a/status/6", 250)
	require.NoError(t, store.Create(ctx, rec))

	deleted, err := store.DeleteByPermalink(ctx, rec.PermalinkURL)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err = store.DeleteByPermalink(ctx, rec.PermalinkURL)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := pendingRecord("https://x.com/a/status/7", 100)
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, store.Create(ctx, older))

	newer := pendingRecord("https://x.com/a/status/8", 100)
	newer.CreatedAt = time.Now().UTC()
	require.NoError(t, store.Create(ctx, newer))

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	events, cancel := store.Subscribe(8)
	defer cancel()

	rec := pendingRecord("https://x.com/a/status/9", 250)
	require.NoError(t, store.Create(ctx, rec))

	select {
	case ev := <-events:
		assert.Equal(t, domain.RecordCreated, ev.Type)
		assert.Equal(t, rec.ID, ev.Record.ID)
		assert.Equal(t, domain.StatusPending, ev.Record.Status)
	case <-time.After(time.Second):
		t.Fatal("no create event received")
	}

	require.NoError(t, store.ResolveRejected(ctx, rec.ID, "SaaS"))
	select {
	case ev := <-events:
		assert.Equal(t, domain.RecordUpdated, ev.Type)
		assert.Equal(t, domain.StatusRejected, ev.Record.Status)
	case <-time.After(time.Second):
		t.Fatal("no update event received")
	}
}
