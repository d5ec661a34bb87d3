package domain

import (
	"strings"
	"time"
)

// promotionMarkers is the multilingual set of promoted-content labels. An
// item containing any of these in its text, or exposing one as an icon
// label, is an ad and is dropped before scoring.
var promotionMarkers = []string{"プロモーション", "Ad", "Promoted", "広告"}

// ExtractorConfig tunes candidate extraction.
type ExtractorConfig struct {
	Score ScoreConfig

	// ReplyNoiseThreshold drops items whose reply count has already reached
	// this value: the discussion is saturated and a late reply has little
	// marginal value.
	ReplyNoiseThreshold int
}

// DefaultExtractorConfig returns the production extraction parameters.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Score:               DefaultScoreConfig(),
		ReplyNoiseThreshold: 20,
	}
}

// Extractor turns feed items into scored candidates. It is stateless; the
// caller supplies the clock so repeated extraction of an unchanged item is
// byte-identical.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Stale reports whether a candidate is past the extractor's age cutoff.
// Batch scans drop stale candidates; the single-item path keeps them so the
// zero score is surfaced to the actor instead of silently vanishing.
func (e *Extractor) Stale(c *Candidate, now time.Time) bool {
	return e.cfg.Score.Stale(c.CreatedAt, now)
}

// Extract produces a candidate from one feed item, or nil when the item is
// rejected: no resolvable timestamp or permalink, promoted content, or a
// discussion already saturated with replies. Stale items still produce a
// candidate (with score zero); see Stale.
func (e *Extractor) Extract(item Item, now time.Time) *Candidate {
	createdAt, ok := item.Timestamp()
	if !ok {
		return nil
	}
	permalink := item.PermalinkURL()
	if permalink == "" {
		return nil
	}

	if isPromoted(item) {
		return nil
	}

	metrics, viewsResolved := e.resolveMetrics(item)

	if e.cfg.ReplyNoiseThreshold > 0 && metrics.ReplyCount >= e.cfg.ReplyNoiseThreshold {
		return nil
	}

	bodies := item.BodyTexts()
	var body, quoted string
	if len(bodies) > 0 {
		body = bodies[0]
	}
	if len(bodies) >= 2 {
		quoted = bodies[1]
	}

	author := strings.TrimSpace(strings.SplitN(item.AuthorName(), "\n", 2)[0])
	if author == "" {
		author = "Unknown"
	}

	// The views-aware formula only applies when a view element actually
	// resolved; otherwise fall back to the classic weights even if views
	// are configured.
	score := e.scoreConfigFor(viewsResolved).Score(metrics, createdAt, now)

	return &Candidate{
		PermalinkURL: permalink,
		AuthorName:   author,
		BodyText:     body,
		QuotedText:   quoted,
		CreatedAt:    createdAt,
		Metrics:      metrics,
		Score:        score,
	}
}

func (e *Extractor) scoreConfigFor(viewsResolved bool) ScoreConfig {
	cfg := e.cfg.Score
	if cfg.Variant == ScoreVariantViews && !viewsResolved {
		cfg.Variant = ScoreVariantClassic
	}
	return cfg
}

// resolveMetrics locates the like/repost/reply/views controls. Lookup by
// stable identifier wins; positional fallback over the action bar (reply,
// repost, like, views) only fills gaps, never overrides a found element.
func (e *Extractor) resolveMetrics(item Item) (EngagementMetrics, bool) {
	likeEl, likeOK := item.Metric(MetricLike)
	repostEl, repostOK := item.Metric(MetricRepost)
	replyEl, replyOK := item.Metric(MetricReply)
	viewsEl, viewsOK := item.Metric(MetricViews)

	if !likeOK || !repostOK {
		bar := item.ActionBar()
		if len(bar) >= 3 {
			if !replyOK {
				replyEl, replyOK = bar[0], true
			}
			if !repostOK {
				repostEl, repostOK = bar[1], true
			}
			if !likeOK {
				likeEl, likeOK = bar[2], true
			}
			if !viewsOK && len(bar) >= 4 {
				viewsEl, viewsOK = bar[3], true
			}
		}
	}

	return EngagementMetrics{
		LikeCount:   parseElement(likeEl, likeOK),
		RepostCount: parseElement(repostEl, repostOK),
		ReplyCount:  parseElement(replyEl, replyOK),
		ViewCount:   parseElement(viewsEl, viewsOK),
	}, viewsOK
}

func parseElement(el Element, ok bool) int {
	if !ok || el == nil {
		return 0
	}
	return ParseCount(el.Text(), el.Label())
}

func isPromoted(item Item) bool {
	// Markers render as standalone lines, so compare whole lines rather than
	// substrings ("Ad" would otherwise match inside ordinary words).
	for _, line := range strings.Split(item.FullText(), "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range promotionMarkers {
			if line == marker {
				return true
			}
		}
	}
	for _, label := range item.IconLabels() {
		for _, marker := range promotionMarkers {
			if label == marker {
				return true
			}
		}
	}
	return false
}
