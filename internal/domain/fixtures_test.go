package domain

import (
	"strconv"
	"time"
)

// fakeElement is a fixture metric control.
type fakeElement struct {
	text  string
	label string
}

func (e fakeElement) Text() string  { return e.text }
func (e fakeElement) Label() string { return e.label }

// fakeItem is a fixture feed item built by tests.
type fakeItem struct {
	createdAt    time.Time
	hasTimestamp bool
	permalink    string
	author       string
	fullText     string
	bodies       []string
	iconLabels   []string
	metrics      map[MetricKind]fakeElement
	actionBar    []fakeElement
}

func (i *fakeItem) Timestamp() (time.Time, bool) { return i.createdAt, i.hasTimestamp }
func (i *fakeItem) PermalinkURL() string         { return i.permalink }
func (i *fakeItem) AuthorName() string           { return i.author }
func (i *fakeItem) FullText() string             { return i.fullText }
func (i *fakeItem) BodyTexts() []string          { return i.bodies }
func (i *fakeItem) IconLabels() []string         { return i.iconLabels }

func (i *fakeItem) Metric(kind MetricKind) (Element, bool) {
	el, ok := i.metrics[kind]
	return el, ok
}

func (i *fakeItem) ActionBar() []Element {
	bar := make([]Element, len(i.actionBar))
	for j, el := range i.actionBar {
		bar[j] = el
	}
	return bar
}

// newFakeItem builds a plain, non-promoted item with metrics resolvable by
// identifier.
func newFakeItem(permalink string, createdAt time.Time, likes, reposts, replies, views int) *fakeItem {
	return &fakeItem{
		createdAt:    createdAt,
		hasTimestamp: true,
		permalink:    permalink,
		author:       "Alice Example\n@alice",
		fullText:     "an interesting post about indie development",
		bodies:       []string{"an interesting post about indie development"},
		metrics: map[MetricKind]fakeElement{
			MetricLike:   {text: strconv.Itoa(likes)},
			MetricRepost: {text: strconv.Itoa(reposts)},
			MetricReply:  {text: strconv.Itoa(replies)},
			MetricViews:  {text: strconv.Itoa(views)},
		},
	}
}
