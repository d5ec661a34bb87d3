package domain

import (
	"math"
	"time"
)

// ScoreVariant selects which scoring formula is applied. Both formulas are
// live behavior across deployments, so the choice is configuration rather
// than code.
type ScoreVariant string

const (
	// ScoreVariantClassic weighs likes, reposts and replies only.
	ScoreVariantClassic ScoreVariant = "classic"

	// ScoreVariantViews additionally credits view counts and decays slightly
	// faster, boosting recent posts.
	ScoreVariantViews ScoreVariant = "views"
)

// ScoreConfig is the shared scoring contract. The ingestion boundary and the
// generation gate must hold the same value, otherwise the two gate
// computations drift apart.
type ScoreConfig struct {
	Variant ScoreVariant

	// AgeCutoffMinutes forces the score to zero for posts older than this.
	AgeCutoffMinutes int
}

// DefaultScoreConfig returns the current production scoring parameters.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		Variant:          ScoreVariantViews,
		AgeCutoffMinutes: 120,
	}
}

// MinutesElapsed returns the whole minutes between createdAt and now,
// clamped at zero for clock skew.
func MinutesElapsed(createdAt, now time.Time) int {
	diff := now.Sub(createdAt)
	if diff < 0 {
		return 0
	}
	return int(diff.Milliseconds() / 60_000)
}

// Stale reports whether a post created at createdAt is past the age cutoff.
func (c ScoreConfig) Stale(createdAt, now time.Time) bool {
	return MinutesElapsed(createdAt, now) > c.AgeCutoffMinutes
}

// Score computes the time-decayed engagement score. It is a pure function:
// the same inputs always produce the same score, so it can be recomputed for
// audit. Posts past the age cutoff score exactly zero regardless of metrics.
func (c ScoreConfig) Score(m EngagementMetrics, createdAt, now time.Time) int {
	minutes := MinutesElapsed(createdAt, now)
	if minutes > c.AgeCutoffMinutes {
		return 0
	}

	weighted := float64(m.LikeCount + 3*m.RepostCount + 5*m.ReplyCount)

	switch c.Variant {
	case ScoreVariantViews:
		numerator := (weighted + float64(m.ViewCount)/100) * 10
		return int(math.Floor(numerator / float64(minutes+10)))
	default:
		numerator := weighted * 10
		return int(math.Floor(numerator / float64(minutes+15)))
	}
}
