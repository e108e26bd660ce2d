// Package assistant answers prompts with an LLM, using recent channel messages
// as context and keeping a bounded per-channel conversation history.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/format"
	"github.com/InfiniteCod3/chatplugins/internal/llm"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/internal/notify"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
	"github.com/InfiniteCod3/chatplugins/pkg/metrics"
	"github.com/InfiniteCod3/chatplugins/pkg/tracing"
)

var (
	// ErrConfigurationMissing means no provider credential is set. It is
	// returned before any network call.
	ErrConfigurationMissing = errors.New("AI provider is not configured")
	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Fetcher supplies recent channel messages.
type Fetcher interface {
	Fetch(ctx context.Context, channelID string, n int) []model.Message
}

// History is the conversation store.
type History interface {
	Append(channelID string, role model.Role, content string) model.ConversationEntry
	Get(channelID string) []model.ConversationEntry
	Clear(ctx context.Context, channelID string) error
}

// Options tunes prompts sent to the provider.
type Options struct {
	SystemPrompt string
	// ContextMessages is how many recent channel messages are included.
	ContextMessages int
	MaxTokens       int
	Model           string
}

// Assistant runs AI exchanges.
type Assistant struct {
	client    llm.Client
	fetcher   Fetcher
	history   History
	formatter *format.Formatter
	opts      Options
	notifier  notify.Notifier
	logger    *logger.Logger
	tracer    trace.Tracer
}

// New creates an assistant. client may be nil when no credential is
// configured; Ask then fails with ErrConfigurationMissing.
func New(client llm.Client, f Fetcher, h History, fm *format.Formatter, opts Options, n notify.Notifier, log *logger.Logger) *Assistant {
	return &Assistant{
		client:    client,
		fetcher:   f,
		history:   h,
		formatter: fm,
		opts:      opts,
		notifier:  n,
		logger:    log.Named("assistant"),
		tracer:    tracing.Tracer("assistant"),
	}
}

// Configured reports whether a provider client is available.
func (a *Assistant) Configured() bool {
	return a.client != nil
}

// Ask sends prompt with channel context and stored history, then records the
// user prompt and the answer.
func (a *Assistant) Ask(ctx context.Context, channelID, prompt string) (*model.AskResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if a.client == nil {
		a.notify(ctx, model.NoticeWarning, "AI assistant is not configured", "Set AI_API_KEY and AI_PROVIDER to use the assistant.")
		return nil, ErrConfigurationMissing
	}

	ctx, span := a.tracer.Start(ctx, "assistant.Ask", trace.WithAttributes(
		attribute.String("channel.id", channelID),
		attribute.String("llm.provider", a.client.Name()),
	))
	defer span.End()

	log := a.logger.WithChannel(channelID)

	var recent []model.Message
	if a.opts.ContextMessages > 0 {
		recent = a.fetcher.Fetch(ctx, channelID, a.opts.ContextMessages)
	}
	messages := a.buildMessages(channelID, recent, prompt)

	modelName := a.opts.Model
	if modelName == "" {
		modelName = a.client.DefaultModel()
	}

	start := time.Now()
	resp, err := a.client.Complete(ctx, &llm.CompletionRequest{
		Model:     modelName,
		Messages:  messages,
		MaxTokens: a.opts.MaxTokens,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordLLMRequest(a.client.Name(), modelName, "error", elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		log.Error("completion failed", zap.String("model", modelName), zap.Error(err))
		a.notify(ctx, model.NoticeError, "AI request failed", err.Error())
		return nil, fmt.Errorf("failed to get AI response: %w", err)
	}
	metrics.RecordLLMRequest(a.client.Name(), modelName, "success", elapsed, resp.TokensIn, resp.TokensOut)

	a.history.Append(channelID, model.RoleUser, prompt)
	a.history.Append(channelID, model.RoleAssistant, resp.Content)

	log.Info("AI exchange completed",
		zap.String("model", resp.Model),
		zap.Int("context_messages", len(recent)),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)

	respModel := resp.Model
	if respModel == "" {
		respModel = modelName
	}
	return &model.AskResponse{ChannelID: channelID, Response: resp.Content, Model: respModel}, nil
}

// History returns the stored conversation of a channel.
func (a *Assistant) History(channelID string) []model.ConversationEntry {
	return a.history.Get(channelID)
}

// Reset forgets the stored conversation of a channel.
func (a *Assistant) Reset(ctx context.Context, channelID string) error {
	return a.history.Clear(ctx, channelID)
}

// buildMessages orders the request as: system prompt with channel context,
// stored history, then the new prompt.
func (a *Assistant) buildMessages(channelID string, recent []model.Message, prompt string) []llm.ChatMessage {
	var system strings.Builder
	system.WriteString(a.opts.SystemPrompt)
	if len(recent) > 0 {
		if system.Len() > 0 {
			system.WriteString("\n\n")
		}
		fmt.Fprintf(&system, "Recent messages in channel %s:\n\n", channelID)
		system.WriteString(strings.Join(a.formatter.Blocks(recent), "\n\n"))
	}

	history := a.history.Get(channelID)
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	if system.Len() > 0 {
		messages = append(messages, llm.ChatMessage{Role: string(model.RoleSystem), Content: system.String()})
	}
	for _, e := range history {
		messages = append(messages, llm.ChatMessage{Role: string(e.Role), Content: e.Content})
	}
	return append(messages, llm.ChatMessage{Role: string(model.RoleUser), Content: prompt})
}

func (a *Assistant) notify(ctx context.Context, level model.NoticeLevel, title, body string) {
	if a.notifier != nil {
		a.notifier.Notify(ctx, level, title, body)
	}
}
