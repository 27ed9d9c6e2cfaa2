package answer

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client generates answers through the OpenAI chat completion API.
type Client struct {
	api   *openai.Client
	model string
	log   *zap.Logger
}

// NewClient creates a client for the given API key and model.
func NewClient(apiKey, model string, log *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: openai.NewClient(apiKey), model: model, log: log}, nil
}

// Generate sends the consultant prompt as the system message and the user
// query as the user message, and returns the completion text.
func (c *Client) Generate(ctx context.Context, prompt, query string) (string, error) {
	c.log.Debug("requesting completion", zap.String("model", c.model))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	c.log.Debug("completion received", zap.String("finish_reason", string(resp.Choices[0].FinishReason)))
	return resp.Choices[0].Message.Content, nil
}
