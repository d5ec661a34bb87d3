package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotPending is returned when a conditional status transition finds
	// the record already resolved. Callers treat it as "someone else got
	// there first" and move on.
	ErrNotPending = errors.New("record is not pending")
)

// MetricKind identifies one of the engagement controls inside an item's
// action bar.
type MetricKind string

const (
	MetricReply  MetricKind = "reply"
	MetricRepost MetricKind = "repost"
	MetricLike   MetricKind = "like"
	MetricViews  MetricKind = "views"
)

// Element is a readable node within a feed item: its visible text and its
// accessible label.
type Element interface {
	Text() string
	Label() string
}

// Item is one unit of feed content. Implementations wrap a live page node or
// a test fixture; extraction logic never touches the page directly.
type Item interface {
	// Timestamp returns the post's machine timestamp. ok is false when the
	// item carries no resolvable timestamp.
	Timestamp() (t time.Time, ok bool)

	// PermalinkURL is the stable post link from the timestamp anchor, or ""
	// when absent.
	PermalinkURL() string

	// AuthorName is the raw author label, possibly multi-line.
	AuthorName() string

	// FullText is the item's entire visible text, used for promotion-marker
	// detection.
	FullText() string

	// BodyTexts returns the item's body-text blocks in document order. The
	// second block, when present, is quoted content.
	BodyTexts() []string

	// Metric looks up an engagement control by its stable identifying
	// attribute. ok is false when no such element exists.
	Metric(kind MetricKind) (el Element, ok bool)

	// ActionBar returns the item's action controls in their fixed visual
	// order (reply, repost, like, then views when present). Used only as a
	// positional fallback when Metric lookups come up empty.
	ActionBar() []Element

	// IconLabels returns the accessible labels of icon elements within the
	// item, used for promoted-content detection.
	IconLabels() []string
}

// ItemSource drives a live, continuously mutating feed. One scan owns its
// source exclusively; no two scans share a feed session.
type ItemSource interface {
	// Reset returns the viewport to the top of the feed.
	Reset(ctx context.Context) error

	// VisibleItems snapshots the items currently rendered.
	VisibleItems(ctx context.Context) ([]Item, error)

	// Advance moves the viewport down by a fixed fraction of one screenful.
	Advance(ctx context.Context) error
}

// CandidateSink accepts ranked candidates for ingestion.
type CandidateSink interface {
	Submit(ctx context.Context, c Candidate) error
}

// Generator is the text-generation capability. Any call may fail or return
// well-formed-but-unexpected text; the orchestrator owns retry policy.
type Generator interface {
	Generate(ctx context.Context, model, credential, prompt string) (string, error)
}

// RecordEventType describes a change in the record store.
type RecordEventType string

const (
	RecordCreated RecordEventType = "created"
	RecordUpdated RecordEventType = "updated"
	RecordDeleted RecordEventType = "deleted"
)

// RecordEvent is a change notification from the record store.
type RecordEvent struct {
	Type   RecordEventType `json:"type"`
	Record ReplyRecord     `json:"record"`
}

// RecordStore defines persistence for reply records. Status transitions are
// conditional updates: the store must only apply them when the record is in
// the expected prior state, which is the pipeline's sole concurrency guard.
type RecordStore interface {
	// Create inserts a new record. An empty ID is assigned by the store.
	Create(ctx context.Context, rec *ReplyRecord) error

	// Get retrieves a record by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*ReplyRecord, error)

	// List retrieves up to limit records ordered by creation time descending.
	List(ctx context.Context, limit int) ([]ReplyRecord, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// DeleteByPermalink removes any record with the given permalink,
	// returning how many were removed. Used for explicit re-ingestion resets.
	DeleteByPermalink(ctx context.Context, permalinkURL string) (int64, error)

	// ResolveGenerated transitions pending -> generated, recording the
	// winning fallback pair. Returns ErrNotPending if already resolved.
	ResolveGenerated(ctx context.Context, id, topic string, suggestions []string, model string, credentialIndex int) error

	// ResolveRejected transitions pending -> rejected with a placeholder
	// topic. Returns ErrNotPending if already resolved.
	ResolveRejected(ctx context.Context, id, topic string) error

	// ResolveError transitions pending -> error with a message. Returns
	// ErrNotPending if already resolved.
	ResolveError(ctx context.Context, id, message string) error

	// MarkPosted transitions generated -> posted.
	MarkPosted(ctx context.Context, id string) error

	// Subscribe returns a channel of change events and a cancel function.
	// Events are dropped, not blocked on, when the subscriber lags.
	Subscribe(buffer int) (<-chan RecordEvent, func())
}
