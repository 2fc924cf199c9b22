// Package adjudicate implements reconcile.Adjudicator on top of the Anthropic
// Messages API and the verdict cache.
package adjudicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/resilience"
	"github.com/sells-group/hitrate-cli/pkg/anthropic"
)

const systemPrompt = `You decide whether two company names from different business systems refer to the same organization (the same legal entity or the same plant operator).
The first name comes from an installed-equipment inventory, the second from a CRM.
Ignore differences in legal form, word order, abbreviations, diacritics and punctuation.
Treat a subsidiary and its parent as different unless the names leave no doubt.
Answer with a single JSON object and nothing else: {"match": true|false, "explanation": "<one short sentence>"}`

// ClaudeConfig configures the Claude adjudicator.
type ClaudeConfig struct {
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
	Breaker   resilience.BreakerConfig
}

// Claude asks a Claude model to confirm or reject a borderline pair.
type Claude struct {
	client  anthropic.Client
	cfg     ClaudeConfig
	breaker *resilience.Breaker
}

// NewClaude wires a Claude adjudicator.
func NewClaude(client anthropic.Client, cfg ClaudeConfig) *Claude {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.LogRetry("anthropic", "adjudicate")
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = retryable
	}
	if cfg.Breaker.OnStateChange == nil {
		cfg.Breaker.OnStateChange = func(from, to resilience.State) {
			zap.L().Warn("adjudicate: circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	return &Claude{client: client, cfg: cfg, breaker: resilience.NewBreaker(cfg.Breaker)}
}

// Adjudicate implements reconcile.Adjudicator.
func (c *Claude) Adjudicate(ctx context.Context, req reconcile.Request) (reconcile.Verdict, error) {
	msg := anthropic.MessageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(req)}},
		Temperature: ptrFloat(0),
	}

	resp, err := resilience.Call(ctx, c.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.Do(ctx, c.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return c.client.CreateMessage(ctx, msg)
		})
	})
	if err != nil {
		return reconcile.Verdict{}, eris.Wrapf(reconcile.ErrAdjudicationUnavailable, "adjudicate: %s vs %s: %v", req.NameA, req.NameB, err)
	}
	resp.Usage.Log(resp.Model, "adjudicate")

	v, err := parseVerdict(resp.Text())
	if err != nil {
		return reconcile.Verdict{}, eris.Wrapf(reconcile.ErrAdjudicationUnavailable, "adjudicate: %v", err)
	}
	v.Source = resp.Model
	if v.Source == "" {
		v.Source = c.cfg.Model
	}
	return v, nil
}

func buildPrompt(req reconcile.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inventory name: %q\n", req.NameA)
	fmt.Fprintf(&b, "CRM name: %q\n", req.NameB)
	fmt.Fprintf(&b, "Token-sort similarity: %.1f/100 (%s)\n", req.Score, req.Tier)

	keys := make([]string, 0, len(req.Metadata))
	for k, v := range req.Metadata {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, req.Metadata[k])
	}
	return b.String()
}

type verdictJSON struct {
	Match       *bool  `json:"match"`
	Explanation string `json:"explanation"`
}

// parseVerdict decodes the first JSON object in the reply.
func parseVerdict(text string) (reconcile.Verdict, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return reconcile.Verdict{}, eris.Errorf("no JSON object in reply %q", truncate(text, 80))
	}

	var v verdictJSON
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&v); err != nil {
		return reconcile.Verdict{}, eris.Wrapf(err, "decode reply %q", truncate(text, 80))
	}
	if v.Match == nil {
		return reconcile.Verdict{}, eris.New("reply has no match field")
	}
	return reconcile.Verdict{Match: *v.Match, Explanation: strings.TrimSpace(v.Explanation)}, nil
}

func retryable(err error) bool {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func ptrFloat(v float64) *float64 { return &v }
