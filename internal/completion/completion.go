// Package completion wraps chat-completion backends behind a small
// provider interface so handlers and tests stay independent of the
// OpenAI client.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrProvider wraps failures reported by the completion backend.
	ErrProvider = errors.New("completion provider error")
	// ErrNoMessages is returned when a request carries no messages.
	ErrNoMessages = errors.New("no messages provided")
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider produces chat completions.
type Provider interface {
	// Complete returns the full assistant reply for the conversation.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Stream invokes emit for each content delta as it arrives. A non-nil
	// error from emit aborts the stream.
	Stream(ctx context.Context, messages []Message, emit func(delta string) error) error
}

// Config holds OpenAI chat settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIProvider implements Provider using the OpenAI chat API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed completion provider.
func NewOpenAI(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrProvider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrProvider)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	req, err := p.request(messages)
	if err != nil {
		return "", err
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrProvider)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, emit func(delta string) error) error {
	req, err := p.request(messages)
	if err != nil {
		return err
	}
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
}

func (p *OpenAIProvider) request(messages []Message) (openai.ChatCompletionRequest, error) {
	if len(messages) == 0 {
		return openai.ChatCompletionRequest{}, ErrNoMessages
	}
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{Model: p.model, Messages: converted}, nil
}

var _ Provider = (*OpenAIProvider)(nil)
