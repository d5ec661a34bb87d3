package domain

import "time"

// Candidate is a scored extraction result produced during a timeline scan.
// It is immutable after creation and identified by its permalink URL; two
// extractions of the same item must be deduplicated by that key.
type Candidate struct {
	// PermalinkURL is the stable link to the post, taken from the timestamp
	// anchor. It is the dedup key.
	PermalinkURL string `json:"originalTweetUrl"`

	// AuthorName is the display name of the post's author.
	AuthorName string `json:"authorName"`

	// BodyText is the post's own text.
	BodyText string `json:"originalText"`

	// QuotedText is the text of a quoted post, if any.
	QuotedText string `json:"quotedText,omitempty"`

	// CreatedAt is when the post was published.
	CreatedAt time.Time `json:"tweetCreatedAt"`

	Metrics EngagementMetrics `json:"metrics"`

	// Score is the time-decayed engagement score computed at extraction time.
	Score int `json:"score"`
}
