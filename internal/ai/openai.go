package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tbourn/go-edu-chat-backend/internal/config"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

// SystemPrompt frames every completion request.
const SystemPrompt = "You are an educational AI assistant designed to help users learn various subjects. Provide helpful, accurate, and concise responses."

// FallbackReply is returned when the provider answers with no content.
const FallbackReply = "I apologize, but I was unable to generate a response."

// OpenAI calls the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI builds a client from cfg. An empty model falls back to
// gpt-3.5-turbo and a non-positive token limit to 500. The temperature is
// used as given; config.Load supplies the 0.7 default.
func NewOpenAI(cfg config.AIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	g := &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
	if g.model == "" {
		g.model = openai.GPT3Dot5Turbo
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 500
	}
	if g.temperature == 0 {
		// The request field is omitempty; a zero would be dropped and the
		// API would apply its own default.
		g.temperature = math.SmallestNonzeroFloat32
	}
	return g
}

// Generate implements Generator.
func (g *OpenAI) Generate(ctx context.Context, message string, history []domain.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return FallbackReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}
