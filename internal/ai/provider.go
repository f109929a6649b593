// Package ai is the language-model layer: one Provider contract, four
// backends (ollama, openai, anthropic, bedrock), JSON salvage parsing,
// and the liquid prompt templates.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gemsieve/gemsieve/internal/config"
)

// Request is one completion call. TemplateID and SenderDomain ride along
// for audit logging; backends ignore them.
type Request struct {
	System       string
	Prompt       string
	Model        string
	JSONMode     bool
	TemplateID   string
	SenderDomain string
}

// Result is the model's answer. JSON is populated when JSONMode was set
// and the response carried a parseable object.
type Result struct {
	Text string
	JSON map[string]any
}

// Provider is the model backend contract. Implementations are safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// New builds a provider from a "provider:model" spec string. A spec with
// no colon is treated as an ollama model name.
func New(spec string, cfg config.AIConfig) (Provider, error) {
	provider := "ollama"
	model := spec
	if idx := strings.Index(spec, ":"); idx >= 0 {
		provider = spec[:idx]
		model = spec[idx+1:]
	}
	if model == "" {
		model = cfg.Model
	}

	switch provider {
	case "ollama":
		return newOllama(model, cfg), nil
	case "openai":
		return newOpenAI(model, cfg), nil
	case "anthropic":
		return newAnthropic(model, cfg), nil
	case "bedrock":
		return newBedrock(model, cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", provider)
	}
}

// parseResult applies the salvage ladder to raw model output: direct
// unmarshal, then a ```json fence, then any ``` fence, else text-only.
func parseResult(raw string, jsonMode bool) *Result {
	res := &Result{Text: raw}
	if !jsonMode {
		return res
	}
	for _, candidate := range jsonCandidates(raw) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			res.JSON = obj
			return res
		}
	}
	return res
}

func jsonCandidates(raw string) []string {
	out := []string{strings.TrimSpace(raw)}
	if block := fencedBlock(raw, "```json"); block != "" {
		out = append(out, block)
	}
	if block := fencedBlock(raw, "```"); block != "" {
		out = append(out, block)
	}
	return out
}

func fencedBlock(raw, fence string) string {
	start := strings.Index(raw, fence)
	if start < 0 {
		return ""
	}
	rest := raw[start+len(fence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// retryProvider wraps a backend with exponential backoff on transport
// errors. Context cancellation is never retried.
type retryProvider struct {
	inner    Provider
	attempts int
	base     time.Duration
}

// WithRetry wraps a provider with up to three attempts.
func WithRetry(p Provider) Provider {
	return &retryProvider{inner: p, attempts: 3, base: time.Second}
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Complete(ctx context.Context, req Request) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			delay := r.base << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		res, err := r.inner.Complete(ctx, req)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", r.attempts, lastErr)
}
