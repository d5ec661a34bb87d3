// Package generate drives pending reply records through the score gate and
// the multi-model, multi-credential generation fallback chain.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sparklabs/spark/internal/domain"
)

// placeholderTopic is written to records rejected below the gate, where no
// model ever classified the post.
const placeholderTopic = "SaaS"

// Config tunes the orchestrator.
type Config struct {
	// ScoreThreshold is the gate: records scoring below it are rejected
	// without any provider call. This is the primary cost control.
	ScoreThreshold int

	// Models is the preference-ordered model list, best first.
	Models []string

	// Credentials is the ordered API credential list.
	Credentials []string

	// SuggestionCount is how many reply suggestions the prompt asks for
	// (2 or 3 depending on the deployment profile).
	SuggestionCount int
}

// Orchestrator resolves pending records to a terminal status: rejected below
// the gate, generated on the first successful (model, credential) pair, or
// error when every pair fails or a successful call returns an unparsable
// payload.
type Orchestrator struct {
	store  domain.RecordStore
	gen    domain.Generator
	cfg    Config
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store domain.RecordStore, gen domain.Generator, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.SuggestionCount <= 0 {
		cfg.SuggestionCount = 3
	}
	return &Orchestrator{store: store, gen: gen, cfg: cfg, logger: logger}
}

// Process resolves one record. Re-entry on an already-resolved record is a
// no-op, which is the pipeline's idempotency guard.
func (o *Orchestrator) Process(ctx context.Context, rec *domain.ReplyRecord) error {
	if rec.Status != domain.StatusPending {
		return nil
	}

	if rec.Score < o.cfg.ScoreThreshold {
		o.logger.Info("record below score gate, skipping generation",
			"id", rec.ID,
			"score", rec.Score,
			"threshold", o.cfg.ScoreThreshold,
		)
		if err := o.store.ResolveRejected(ctx, rec.ID, placeholderTopic); err != nil {
			return fmt.Errorf("reject record %s: %w", rec.ID, err)
		}
		return nil
	}

	prompt := buildReplyPrompt(rec, o.cfg.SuggestionCount)

	// Model-major order: exhaust every credential for the best model before
	// advancing to the next one. Model quality dominates credential
	// availability, so the attempts must stay sequential.
	var lastErr error
	for _, model := range o.cfg.Models {
		for i, credential := range o.cfg.Credentials {
			out, err := o.gen.Generate(ctx, model, credential, prompt)
			if err != nil {
				o.logger.Warn("generation call failed",
					"id", rec.ID,
					"model", model,
					"credential_index", i+1,
					"error", err,
				)
				lastErr = err
				continue
			}
			if strings.TrimSpace(out) == "" {
				lastErr = fmt.Errorf("model %s returned empty response", model)
				continue
			}

			payload, perr := parsePayload(out, o.cfg.SuggestionCount)
			if perr != nil {
				// The call itself succeeded, so trying further pairs would
				// burn quota without improving the odds. Terminal error.
				msg := fmt.Sprintf("unparsable response from %s: %v", model, perr)
				o.logger.Error("generation payload failure", "id", rec.ID, "model", model, "error", perr)
				if err := o.store.ResolveError(ctx, rec.ID, msg); err != nil {
					return fmt.Errorf("record error for %s: %w", rec.ID, err)
				}
				return nil
			}

			if err := o.store.ResolveGenerated(ctx, rec.ID, payload.Topic, payload.Suggestions, model, i+1); err != nil {
				return fmt.Errorf("resolve record %s: %w", rec.ID, err)
			}
			o.logger.Info("suggestions generated",
				"id", rec.ID,
				"model", model,
				"credential_index", i+1,
				"suggestions", len(payload.Suggestions),
			)
			return nil
		}
	}

	msg := "all generation fallbacks exhausted"
	if lastErr != nil {
		msg = fmt.Sprintf("all generation fallbacks exhausted: %v", lastErr)
	}
	if err := o.store.ResolveError(ctx, rec.ID, msg); err != nil {
		return fmt.Errorf("record error for %s: %w", rec.ID, err)
	}
	return nil
}
