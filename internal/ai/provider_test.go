package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemsieve/gemsieve/internal/config"
)

func TestParseResultDirect(t *testing.T) {
	res := parseResult(`{"industry": "SaaS", "confidence": 0.9}`, true)
	require.NotNil(t, res.JSON)
	assert.Equal(t, "SaaS", res.JSON["industry"])
}

func TestParseResultJSONFence(t *testing.T) {
	raw := "Here is the classification:\n```json\n{\"industry\": \"Agency\"}\n```\nDone."
	res := parseResult(raw, true)
	require.NotNil(t, res.JSON)
	assert.Equal(t, "Agency", res.JSON["industry"])
	assert.Equal(t, raw, res.Text)
}

func TestParseResultBareFence(t *testing.T) {
	raw := "```\n{\"subject_line\": \"hi\", \"body\": \"text\"}\n```"
	res := parseResult(raw, true)
	require.NotNil(t, res.JSON)
	assert.Equal(t, "hi", res.JSON["subject_line"])
}

func TestParseResultUnsalvageable(t *testing.T) {
	res := parseResult("I cannot answer that.", true)
	assert.Nil(t, res.JSON)
	assert.Equal(t, "I cannot answer that.", res.Text)
}

func TestParseResultTextMode(t *testing.T) {
	res := parseResult(`{"looks": "like json"}`, false)
	assert.Nil(t, res.JSON)
}

func TestNewProviderSpecs(t *testing.T) {
	cfg := config.Default().AI

	p, err := New("ollama:mistral-nemo", cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = New("mistral-nemo", cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name(), "no colon defaults to ollama")

	p, err = New("openai:gpt-4o-mini", cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New("anthropic:claude-sonnet-4-20250514", cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = New("watson:jeopardy", cfg)
	assert.Error(t, err)
}

type scriptedProvider struct {
	calls   int
	failFor int
	result  *Result
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(_ context.Context, _ Request) (*Result, error) {
	s.calls++
	if s.calls <= s.failFor {
		return nil, errors.New("transient")
	}
	return s.result, nil
}

func TestWithRetryRecovers(t *testing.T) {
	inner := &scriptedProvider{failFor: 2, result: &Result{Text: "ok"}}
	p := WithRetry(inner)

	res, err := p.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryExhausts(t *testing.T) {
	inner := &scriptedProvider{failFor: 10}
	p := WithRetry(inner)

	_, err := p.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	inner := &scriptedProvider{failFor: 10}
	p := WithRetry(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Complete(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls, "cancelled context stops the backoff loop")
}
