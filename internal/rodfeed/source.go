// Package rodfeed implements domain.ItemSource over a live timeline page
// driven through headless Chrome.
package rodfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/sparklabs/spark/internal/domain"
)

// Source drives one timeline tab. It must not be shared between concurrent
// scans: the feed shifts under scrolling, so a scan owns its viewport.
type Source struct {
	browser        *rod.Browser
	page           *rod.Page
	scrollFraction float64
	launched       bool
	logger         *slog.Logger
}

// Attach connects to Chrome (launching a local headless instance when
// controlURL is empty), opens the timeline page with stealth applied, and
// waits for the initial load.
func Attach(ctx context.Context, controlURL, pageURL string, scrollFraction float64, logger *slog.Logger) (*Source, error) {
	launched := false
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		launched = true
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		browser.Close()
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		logger.Warn("wait load timeout", "url", pageURL, "error", err)
	}

	if scrollFraction <= 0 {
		scrollFraction = 0.8
	}

	return &Source{
		browser:        browser,
		page:           page,
		scrollFraction: scrollFraction,
		launched:       launched,
		logger:         logger,
	}, nil
}

// Close closes the tab, and the browser too when this Source launched it.
func (s *Source) Close() error {
	if s.page != nil {
		s.page.Close()
	}
	if s.launched && s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

// Reset scrolls the viewport back to the top of the feed.
func (s *Source) Reset(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
	if err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return nil
}

// Advance scrolls down by the configured fraction of one screenful.
func (s *Source) Advance(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(
		`(fraction) => window.scrollBy(0, window.innerHeight * fraction)`,
		s.scrollFraction,
	)
	if err != nil {
		return fmt.Errorf("scroll viewport: %w", err)
	}
	return nil
}

// VisibleItems snapshots every article element currently rendered. Each item
// is read in a single in-page evaluation so its fields are consistent even
// while the feed keeps mutating.
func (s *Source) VisibleItems(ctx context.Context) ([]domain.Item, error) {
	elements, err := s.page.Context(ctx).Elements("article")
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	items := make([]domain.Item, 0, len(elements))
	for _, el := range elements {
		res, err := el.Eval(snapshotJS)
		if err != nil {
			// The node may have unmounted mid-scroll. Skip it; the next
			// pass will pick the post up again if it is still visible.
			s.logger.Debug("item snapshot failed", "error", err)
			continue
		}
		var snap itemSnapshot
		if err := json.Unmarshal([]byte(res.Value.Str()), &snap); err != nil {
			s.logger.Debug("item snapshot decode failed", "error", err)
			continue
		}
		items = append(items, &item{snap: snap})
	}
	return items, nil
}

// snapshotJS reads everything candidate extraction needs from one article
// node: timestamp anchor, author, text blocks, engagement controls by their
// data-testid attributes, the positional action bar, and icon labels for
// promotion detection.
const snapshotJS = `() => {
	const read = (el) => el
		? { text: el.innerText || "", label: el.getAttribute("aria-label") || "", found: true }
		: { text: "", label: "", found: false };

	const t = this.querySelector("time");
	const anchor = t ? t.closest("a") : null;
	const authorEl = this.querySelector('[data-testid="User-Name"]');
	const bar = this.querySelector('[role="group"]');

	return JSON.stringify({
		datetime: t ? (t.getAttribute("datetime") || "") : "",
		permalink: anchor ? anchor.href : "",
		author: authorEl ? authorEl.innerText : "",
		fullText: this.innerText || "",
		bodies: Array.from(this.querySelectorAll('[data-testid="tweetText"]')).map((e) => e.innerText),
		iconLabels: Array.from(this.querySelectorAll("svg"))
			.map((e) => e.getAttribute("aria-label") || "")
			.filter(Boolean),
		reply: read(this.querySelector('[data-testid="reply"]')),
		repost: read(this.querySelector('[data-testid="retweet"]') || this.querySelector('[data-testid="unretweet"]')),
		like: read(this.querySelector('[data-testid="like"]') || this.querySelector('[data-testid="unlike"]')),
		views: read(this.querySelector('a[href$="/analytics"]')),
		actionBar: bar ? Array.from(bar.querySelectorAll('[role="button"]')).map(read) : []
	});
}`

type elementReading struct {
	TextContent string `json:"text"`
	AriaLabel   string `json:"label"`
	Found       bool   `json:"found"`
}

func (e elementReading) Text() string  { return e.TextContent }
func (e elementReading) Label() string { return e.AriaLabel }

type itemSnapshot struct {
	Datetime   string           `json:"datetime"`
	Permalink  string           `json:"permalink"`
	Author     string           `json:"author"`
	FullText   string           `json:"fullText"`
	Bodies     []string         `json:"bodies"`
	IconLabels []string         `json:"iconLabels"`
	Reply      elementReading   `json:"reply"`
	Repost     elementReading   `json:"repost"`
	Like       elementReading   `json:"like"`
	Views      elementReading   `json:"views"`
	ActionBar  []elementReading `json:"actionBar"`
}

// item adapts one snapshot to domain.Item.
type item struct {
	snap itemSnapshot
}

func (i *item) Timestamp() (time.Time, bool) {
	if i.snap.Datetime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, i.snap.Datetime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (i *item) PermalinkURL() string { return i.snap.Permalink }
func (i *item) AuthorName() string   { return i.snap.Author }
func (i *item) FullText() string     { return i.snap.FullText }
func (i *item) BodyTexts() []string  { return i.snap.Bodies }
func (i *item) IconLabels() []string { return i.snap.IconLabels }

func (i *item) Metric(kind domain.MetricKind) (domain.Element, bool) {
	var r elementReading
	switch kind {
	case domain.MetricReply:
		r = i.snap.Reply
	case domain.MetricRepost:
		r = i.snap.Repost
	case domain.MetricLike:
		r = i.snap.Like
	case domain.MetricViews:
		r = i.snap.Views
	}
	return r, r.Found
}

func (i *item) ActionBar() []domain.Element {
	bar := make([]domain.Element, len(i.snap.ActionBar))
	for j, r := range i.snap.ActionBar {
		bar[j] = r
	}
	return bar
}
