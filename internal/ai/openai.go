package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gemsieve/gemsieve/internal/config"
)

// chatProvider serves both openai and ollama: ollama exposes an
// OpenAI-compatible chat endpoint under /v1, so one client covers both.
type chatProvider struct {
	name       string
	model      string
	client     *openai.Client
	jsonFormat bool
}

func newOllama(model string, cfg config.AIConfig) *chatProvider {
	base := strings.TrimRight(cfg.OllamaBaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	key := cfg.OllamaAPIKey
	if key == "" {
		key = "ollama" // the client requires a non-empty token
	}
	cc := openai.DefaultConfig(key)
	cc.BaseURL = base + "/v1"
	return &chatProvider{
		name:   "ollama",
		model:  model,
		client: openai.NewClientWithConfig(cc),
	}
}

func newOpenAI(model string, cfg config.AIConfig) *chatProvider {
	return &chatProvider{
		name:       "openai",
		model:      model,
		client:     openai.NewClient(cfg.OpenAIAPIKey),
		jsonFormat: true,
	}
}

func (p *chatProvider) Name() string { return p.name }

func (p *chatProvider) Complete(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	// Ollama predates response_format; rely on salvage parsing there.
	if req.JSONMode && p.jsonFormat {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s completion: empty response", p.name)
	}
	return parseResult(resp.Choices[0].Message.Content, req.JSONMode), nil
}
