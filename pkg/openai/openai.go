// Package openai adapts the go-openai client to the engine's embed and chat
// interfaces, for OpenAI-compatible deployments.
package openai

import (
	"context"
	"errors"

	gopenai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible API for embeddings and single-turn chat.
type Client struct {
	api        *gopenai.Client
	embedModel string
	chatModel  string
}

// New creates a Client. baseURL may be empty for the default OpenAI endpoint.
func New(apiKey, baseURL, embedModel, chatModel string) *Client {
	cfg := gopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        gopenai.NewClientWithConfig(cfg),
		embedModel: embedModel,
		chatModel:  chatModel,
	}
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, gopenai.EmbeddingRequest{
		Model: gopenai.EmbeddingModel(c.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no embedding data returned")
	}
	return resp.Data[0].Embedding, nil
}

// Chat sends prompt as a single user turn and returns the reply text.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
