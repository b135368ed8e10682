package inference

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

/**
OpenAICompatibleClient talks to any OpenAI-style chat completions API (OpenAI itself, Groq, OpenRouter)
*/
type OpenAICompatibleClient struct {
	llm llms.Model
}

func NewOpenAICompatibleClient(apiKey string, model string, baseURL string) (*OpenAICompatibleClient, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai-compatible client: %w", err)
	}
	return &OpenAICompatibleClient{llm: llm}, nil
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, req Request) (string, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	var callOpts []llms.CallOption
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
