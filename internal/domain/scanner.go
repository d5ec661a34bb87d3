package domain

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// ScanConfig tunes one timeline scan.
type ScanConfig struct {
	// TargetUniqueCount stops the scroll loop once this many unique
	// candidates have been collected.
	TargetUniqueCount int

	// MaxAttempts bounds the scroll loop when the target is never reached.
	MaxAttempts int

	// SettleDelay is how long to wait after advancing the viewport for new
	// content to load.
	SettleDelay time.Duration

	// DispatchDelay paces candidate submissions, as back-pressure against
	// the generation pipeline and provider rate limits.
	DispatchDelay time.Duration

	// TopK is how many ranked candidates are dispatched.
	TopK int
}

// DefaultScanConfig returns the production scan parameters.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		TargetUniqueCount: 50,
		MaxAttempts:       100,
		SettleDelay:       1500 * time.Millisecond,
		DispatchDelay:     3 * time.Second,
		TopK:              3,
	}
}

// ScanProgress reports how far a running scan has gotten.
type ScanProgress struct {
	Unique   int
	Target   int
	Attempts int
}

// ScanResult summarizes a finished scan.
type ScanResult struct {
	// Candidates is the ranked dispatch set, highest score first, at most
	// TopK entries.
	Candidates []Candidate

	// Collected is the number of unique candidates seen across all passes.
	Collected int

	// Attempts is how many scroll passes were made.
	Attempts int

	// Dispatched is how many candidates were submitted successfully.
	Dispatched int
}

// Scanner drives incremental scrolling over a mutating feed, deduplicates
// candidates by permalink, and dispatches a ranked top-K selection. A
// Scanner owns its ItemSource for the duration of one Scan call; the dedup
// state lives on the stack of that call, not in globals.
type Scanner struct {
	source    ItemSource
	extractor *Extractor
	sink      CandidateSink
	cfg       ScanConfig
	logger    *slog.Logger

	// OnProgress, when set, is called after every collection pass.
	OnProgress func(ScanProgress)

	// now is swappable for tests.
	now func() time.Time
}

// NewScanner creates a Scanner.
func NewScanner(source ItemSource, extractor *Extractor, sink CandidateSink, cfg ScanConfig, logger *slog.Logger) *Scanner {
	return &Scanner{
		source:    source,
		extractor: extractor,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Scan runs one full scan: reset to the top, scroll and collect until the
// unique target is reached or the attempt budget is spent, rank by score,
// and dispatch the top K sequentially. Cancellation is checked at each loop
// head; a submission failure for one candidate does not abort the rest.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	if err := s.source.Reset(ctx); err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, s.cfg.SettleDelay); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var collected []Candidate // discovery order, for stable tie-breaking
	attempts := 0

	for len(collected) < s.cfg.TargetUniqueCount && attempts < s.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := s.source.VisibleItems(ctx)
		if err != nil {
			return nil, err
		}

		now := s.now()
		for _, item := range items {
			c := s.extractor.Extract(item, now)
			if c == nil || s.extractor.Stale(c, now) {
				continue
			}
			if _, dup := seen[c.PermalinkURL]; dup {
				continue
			}
			seen[c.PermalinkURL] = struct{}{}
			collected = append(collected, *c)
		}

		if s.OnProgress != nil {
			s.OnProgress(ScanProgress{Unique: len(collected), Target: s.cfg.TargetUniqueCount, Attempts: attempts})
		}

		if err := s.source.Advance(ctx); err != nil {
			return nil, err
		}
		if err := sleepCtx(ctx, s.cfg.SettleDelay); err != nil {
			return nil, err
		}
		attempts++
	}

	s.logger.Info("scan collection complete", "unique", len(collected), "attempts", attempts)

	ranked := make([]Candidate, len(collected))
	copy(ranked, collected)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > s.cfg.TopK {
		ranked = ranked[:s.cfg.TopK]
	}

	result := &ScanResult{
		Candidates: ranked,
		Collected:  len(collected),
		Attempts:   attempts,
	}

	for i, c := range ranked {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.sink.Submit(ctx, c); err != nil {
			s.logger.Error("candidate submission failed",
				"permalink", c.PermalinkURL,
				"score", c.Score,
				"error", err,
			)
		} else {
			result.Dispatched++
		}
		if i < len(ranked)-1 {
			if err := sleepCtx(ctx, s.cfg.DispatchDelay); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
