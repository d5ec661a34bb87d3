package domain

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a fixed page of items per scroll pass.
type fakeSource struct {
	pages   [][]Item
	pos     int
	resets  int
	stopped bool
}

func (s *fakeSource) Reset(context.Context) error {
	s.resets++
	s.pos = 0
	return nil
}

func (s *fakeSource) VisibleItems(context.Context) ([]Item, error) {
	if s.pos >= len(s.pages) {
		return nil, nil
	}
	return s.pages[s.pos], nil
}

func (s *fakeSource) Advance(context.Context) error {
	if s.pos < len(s.pages) {
		s.pos++
	}
	return nil
}

// fakeSink records submissions and can fail selected permalinks.
type fakeSink struct {
	submitted []Candidate
	failFor   map[string]error
}

func (s *fakeSink) Submit(_ context.Context, c Candidate) error {
	if err, ok := s.failFor[c.PermalinkURL]; ok {
		return err
	}
	s.submitted = append(s.submitted, c)
	return nil
}

func testScanner(source ItemSource, sink CandidateSink, cfg ScanConfig) *Scanner {
	s := NewScanner(source, testExtractor(), sink, cfg, slog.New(slog.DiscardHandler))
	return s
}

func fastScanConfig(target, attempts int) ScanConfig {
	return ScanConfig{
		TargetUniqueCount: target,
		MaxAttempts:       attempts,
		SettleDelay:       0,
		DispatchDelay:     0,
		TopK:              3,
	}
}

func TestScanDeduplicatesByPermalink(t *testing.T) {
	now := time.Now()
	a := newFakeItem("https://x.com/a/status/1", now.Add(-time.Minute), 100, 0, 0, 0)
	b := newFakeItem("https://x.com/b/status/2", now.Add(-time.Minute), 50, 0, 0, 0)

	// The same items stay visible across passes, as on a real feed.
	source := &fakeSource{pages: [][]Item{{a, b}, {a, b}, {a, b}}}
	sink := &fakeSink{}

	result, err := testScanner(source, sink, fastScanConfig(10, 3)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Collected)
	assert.Equal(t, 3, result.Attempts)
	seen := map[string]int{}
	for _, c := range result.Candidates {
		seen[c.PermalinkURL]++
	}
	for url, n := range seen {
		assert.Equal(t, 1, n, "duplicate permalink %s", url)
	}
}

func TestScanStopsAtTarget(t *testing.T) {
	now := time.Now()
	var pages [][]Item
	for i := 0; i < 10; i++ {
		pages = append(pages, []Item{
			newFakeItem("https://x.com/u/status/"+strconv.Itoa(i+1), now.Add(-time.Minute), 10, 0, 0, 0),
		})
	}
	source := &fakeSource{pages: pages}
	sink := &fakeSink{}

	result, err := testScanner(source, sink, fastScanConfig(3, 100)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Collected)
	assert.Less(t, result.Attempts, 100)
}

func TestScanExhaustsBudget(t *testing.T) {
	source := &fakeSource{pages: [][]Item{}}
	sink := &fakeSink{}

	result, err := testScanner(source, sink, fastScanConfig(50, 5)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Collected)
	assert.Equal(t, 5, result.Attempts)
}

func TestScanRanksTopKStably(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	low := newFakeItem("https://x.com/u/status/low", now, 1, 0, 0, 0)
	high := newFakeItem("https://x.com/u/status/high", now, 5000, 100, 2, 0)
	mid1 := newFakeItem("https://x.com/u/status/mid1", now, 500, 10, 1, 0)
	mid2 := newFakeItem("https://x.com/u/status/mid2", now, 500, 10, 1, 0) // same score as mid1

	source := &fakeSource{pages: [][]Item{{low, high, mid1, mid2}}}
	sink := &fakeSink{}

	result, err := testScanner(source, sink, fastScanConfig(4, 2)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)

	assert.Equal(t, "https://x.com/u/status/high", result.Candidates[0].PermalinkURL)
	// Equal scores keep discovery order.
	assert.Equal(t, "https://x.com/u/status/mid1", result.Candidates[1].PermalinkURL)
	assert.Equal(t, "https://x.com/u/status/mid2", result.Candidates[2].PermalinkURL)
	assert.Len(t, sink.submitted, 3)
}

func TestScanDropsStaleCandidates(t *testing.T) {
	now := time.Now()
	fresh := newFakeItem("https://x.com/u/status/fresh", now.Add(-time.Minute), 10, 0, 0, 0)
	stale := newFakeItem("https://x.com/u/status/stale", now.Add(-3*time.Hour), 100000, 500, 5, 0)

	source := &fakeSource{pages: [][]Item{{fresh, stale}}}
	sink := &fakeSink{}

	result, err := testScanner(source, sink, fastScanConfig(10, 1)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Collected)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "https://x.com/u/status/fresh", result.Candidates[0].PermalinkURL)
}

func TestScanDispatchContinuesPastFailures(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	a := newFakeItem("https://x.com/u/status/a", now, 300, 0, 0, 0)
	b := newFakeItem("https://x.com/u/status/b", now, 200, 0, 0, 0)
	c := newFakeItem("https://x.com/u/status/c", now, 100, 0, 0, 0)

	source := &fakeSource{pages: [][]Item{{a, b, c}}}
	sink := &fakeSink{failFor: map[string]error{
		"https://x.com/u/status/b": errors.New("boom"),
	}}

	result, err := testScanner(source, sink, fastScanConfig(3, 2)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Dispatched)
	require.Len(t, sink.submitted, 2)
	assert.Equal(t, "https://x.com/u/status/a", sink.submitted[0].PermalinkURL)
	assert.Equal(t, "https://x.com/u/status/c", sink.submitted[1].PermalinkURL)
}

func TestScanHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Now().Add(-time.Minute)
	source := &fakeSource{pages: [][]Item{{newFakeItem("https://x.com/u/status/1", now, 1, 0, 0, 0)}}}

	_, err := testScanner(source, &fakeSink{}, fastScanConfig(10, 10)).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
