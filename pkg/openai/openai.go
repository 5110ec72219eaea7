package openai

import (
	"context"
	"errors"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps the openai chat completion API used for script and
// lyric generation.
type Client struct {
	client *openai.Client
	model  string
	debug  bool
}

type Config struct {
	Token string
	Model string
	Host  string
	Debug bool
}

const defaultModel = "gpt-4o-mini"

func New(cfg *Config) *Client {
	conf := openai.DefaultConfig(cfg.Token)
	if cfg.Host != "" {
		conf.BaseURL = cfg.Host
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		debug:  cfg.Debug,
	}
}

// ChatCompletion sends a single user message and returns the first
// choice of the response.
func (c *Client) ChatCompletion(ctx context.Context, msg string) (string, error) {
	return c.chat(ctx, msg, 0, 0)
}

// Complete is ChatCompletion with explicit sampling limits.
func (c *Client) Complete(ctx context.Context, msg string, maxTokens int, temperature float32) (string, error) {
	return c.chat(ctx, msg, maxTokens, temperature)
}

func (c *Client) chat(ctx context.Context, msg string, maxTokens int, temperature float32) (string, error) {
	c.log("openai: chat completion request: %s", msg)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: couldn't create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content
	c.log("openai: chat completion response: %s", content)
	return content, nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}
