package brain

import (
	"context"
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"

	"optimus/internal/memory"
)

// Request is one chat-completion call.
type Request struct {
	Messages    []memory.Turn
	MaxTokens   int
	Temperature float64
}

// Completer turns a message list into a single assistant reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIChat talks to any OpenAI-compatible chat-completion endpoint.
type OpenAIChat struct {
	client openai.Client
	model  string
}

func NewOpenAIChat(client openai.Client, model string) *OpenAIChat {
	return &OpenAIChat{client: client, model: model}
}

func (c *OpenAIChat) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case memory.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case memory.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(c.model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	// An empty reply is still a reply; the engine acknowledges it.
	content := resp.Choices[0].Message.Content
	log.Debug("Model replied", "model", c.model, "data", content)

	return content, nil
}
