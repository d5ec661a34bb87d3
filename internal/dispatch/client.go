// Package dispatch submits ranked candidates to the ingestion endpoint.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sparklabs/spark/internal/domain"
)

// Client is an HTTP client for the sparkd ingestion API. It implements
// domain.CandidateSink.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the service at baseURL
// (e.g. http://localhost:3000).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type candidatePayload struct {
	OriginalTweetURL string `json:"originalTweetUrl"`
	OriginalText     string `json:"originalText"`
	AuthorName       string `json:"authorName"`
	QuotedText       string `json:"quotedText,omitempty"`
	TweetCreatedAt   string `json:"tweetCreatedAt"`
	LikeCount        int    `json:"likeCount"`
	RepostCount      int    `json:"repostCount"`
	ReplyCount       int    `json:"replyCount"`
	ViewCount        int    `json:"viewCount"`
}

// Submit posts one candidate to the ingestion endpoint.
func (c *Client) Submit(ctx context.Context, cand domain.Candidate) error {
	body := candidatePayload{
		OriginalTweetURL: cand.PermalinkURL,
		OriginalText:     cand.BodyText,
		AuthorName:       cand.AuthorName,
		QuotedText:       cand.QuotedText,
		TweetCreatedAt:   cand.CreatedAt.UTC().Format(time.RFC3339),
		LikeCount:        cand.Metrics.LikeCount,
		RepostCount:      cand.Metrics.RepostCount,
		ReplyCount:       cand.Metrics.ReplyCount,
		ViewCount:        cand.Metrics.ViewCount,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/replies", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
