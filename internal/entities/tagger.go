// Package entities is the extraction stage: NER spans from an external
// tagger plus regex extractors for money, phones, roles, dates, and
// procurement signals.
package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gemsieve/gemsieve/internal/pkg/httpretry"
)

// Span is one labeled region of text from the tagger.
type Span struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Label      string  `json:"label"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Tagger is the NER backend contract.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Span, error)
}

// HTTPTagger posts text to a spaCy-compatible tagging service.
type HTTPTagger struct {
	url    string
	model  string
	client httpretry.HTTPDoer
}

// NewHTTPTagger creates a tagger client for the given endpoint. The
// model name is forwarded so the service can load the right pipeline.
// Transient tagger errors are retried with backoff.
func NewHTTPTagger(url, model string, timeout time.Duration) *HTTPTagger {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPTagger{
		url:    url,
		model:  model,
		client: httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

// Tag sends one text to the service and returns its spans.
func (t *HTTPTagger) Tag(ctx context.Context, text string) ([]Span, error) {
	payload, err := json.Marshal(map[string]string{
		"text":  text,
		"model": t.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tag request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tag request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tag request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tagger returned %d", resp.StatusCode)
	}

	var out struct {
		Entities []Span `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tag response: %w", err)
	}
	return out.Entities, nil
}
