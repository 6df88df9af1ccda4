package assist

import (
	"ShopTalk/entity"
	"ShopTalk/internal/config"
	"ShopTalk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

const historyWindow = 20

const systemPrompt = "You are a support agent for an online shop. " +
	"Draft a short, polite reply to the customer's latest message based on " +
	"the conversation so far. Answer in the customer's language."

// HistorySource provides the transcript slice the draft is based on.
type HistorySource interface {
	GetSessionMessages(sessionID string, limit, offset int) ([]entity.ChatMessage, error)
}

// Service drafts suggested agent replies from session history.
type Service struct {
	client *openai.Client
	model  string
	repo   HistorySource
	log    *slog.Logger
}

// New returns nil when no api key is configured; the caller treats a nil
// service as the feature being disabled.
func New(conf *config.Config, repo HistorySource, log *slog.Logger) *Service {
	if conf.OpenAI.ApiKey == "" {
		return nil
	}
	return &Service{
		client: openai.NewClient(conf.OpenAI.ApiKey),
		model:  conf.OpenAI.Model,
		repo:   repo,
		log:    log.With(sl.Module("assist")),
	}
}

// SuggestReply asks the model for a draft reply to the session's latest
// customer message.
func (s *Service) SuggestReply(ctx context.Context, sessionID string) (string, error) {
	history, err := s.repo.GetSessionMessages(sessionID, historyWindow, 0)
	if err != nil {
		return "", fmt.Errorf("load session history: %w", err)
	}
	if len(history) == 0 {
		return "", fmt.Errorf("session %s has no messages", sessionID)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.SenderType != entity.SenderCustomer {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
