// Package ai adapts the configured chat model into the collaborator
// interfaces the pipeline consumes: completion streaming, memory
// consolidation and voice transcript refinement.
package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/auralabs/aura/backend/internal/config"
	"github.com/auralabs/aura/backend/internal/model/chat"
	memorymodel "github.com/auralabs/aura/backend/internal/model/memory"
	"github.com/auralabs/aura/backend/internal/service/orchestrator"
)

// Service encapsulates all model-backed collaborators on one compiled chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the AI service from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamReply opens a streamed completion for one user message with the
// assembled prompt context.
func (s *Service) StreamReply(ctx context.Context, topic string, dossier *memorymodel.Record, history []chat.Message, message string) (orchestrator.TokenStream, error) {
	input := map[string]any{
		"system":  buildReplySystemPrompt(topic, dossier),
		"history": buildHistoryMessages(history),
		"query":   message,
	}

	reader, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}
	return &replyStream{inner: reader}, nil
}

// replyStream adapts the eino stream reader to the pipeline's TokenStream.
type replyStream struct {
	inner *schema.StreamReader[*schema.Message]
}

func (r *replyStream) Recv() (string, error) {
	msg, err := r.inner.Recv()
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

func (r *replyStream) Close() {
	r.inner.Close()
}

// Summarize asks the model to fold the completed exchange into the dossier
// and returns the raw reply for the consolidator to parse.
func (s *Service) Summarize(ctx context.Context, current memorymodel.Record, exchange []chat.Message) (string, error) {
	turns := make([]exchangeTurn, 0, len(exchange))
	for _, msg := range exchange {
		turns = append(turns, exchangeTurn{role: msg.Sender, content: msg.Text})
	}

	input := map[string]any{
		"system":  consolidationSystemPrompt,
		"history": []*schema.Message(nil),
		"query":   renderDossier(current, turns),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run consolidation chain: %w", err)
	}
	return response.Content, nil
}

// RefineTranscript cleans a raw voice transcript. The raw text is returned
// unchanged when the model produces nothing usable.
func (s *Service) RefineTranscript(ctx context.Context, raw string) (string, error) {
	input := map[string]any{
		"system":  refineSystemPrompt,
		"history": []*schema.Message(nil),
		"query":   raw,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run refinement chain: %w", err)
	}

	refined := strings.TrimSpace(response.Content)
	if refined == "" {
		return raw, nil
	}
	log.Printf("[ai] refined transcript: %q -> %q", raw, refined)
	return refined, nil
}

// buildHistoryMessages converts stored turns into model messages.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
