package domain

import "time"

// Status is the lifecycle state of a reply record. Transitions are one-way:
// pending resolves to exactly one of generated, rejected or error, and
// generated may later become posted. A record never returns to pending; the
// only reset is deletion plus re-creation on re-ingestion of the same
// permalink.
type Status string

const (
	StatusPending   Status = "pending"
	StatusGenerated Status = "generated"
	StatusRejected  Status = "rejected"
	StatusError     Status = "error"
	StatusPosted    Status = "posted"
)

// Terminal reports whether the generation pipeline is done with a record in
// this status. Posted is an external transition out of generated.
func (s Status) Terminal() bool {
	return s == StatusGenerated || s == StatusRejected || s == StatusError || s == StatusPosted
}

// ReplyRecord is the persisted unit tracked through the generation pipeline.
// It is created pending by the ingestion boundary and resolved exactly once
// by the generation orchestrator.
type ReplyRecord struct {
	ID           string            `json:"id"`
	PermalinkURL string            `json:"originalTweetUrl"`
	AuthorName   string            `json:"authorName"`
	BodyText     string            `json:"originalText"`
	QuotedText   string            `json:"quotedText,omitempty"`
	Metrics      EngagementMetrics `json:"metrics"`

	// Score is computed once at ingestion and never silently recomputed.
	Score int `json:"score"`

	Status Status `json:"status"`

	// Topic is the model's topic classification, or a placeholder for
	// records rejected below the gate.
	Topic string `json:"topic,omitempty"`

	// Suggestions is empty unless Status is generated (or posted).
	Suggestions []string `json:"suggestions"`

	// UsedModel and UsedCredentialIndex identify the fallback pair that
	// produced the suggestions. UsedCredentialIndex is 1-based; zero means
	// no pair succeeded.
	UsedModel           string `json:"usedModel,omitempty"`
	UsedCredentialIndex int    `json:"usedCredentialIndex,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// SourceCreatedAt is when the post itself was published.
	SourceCreatedAt time.Time `json:"tweetCreatedAt"`
}
