package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey, baseURL, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// DefaultModel returns the configured model.
func (c *AnthropicClient) DefaultModel() string {
	return c.model
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(toAnthropicMessages(req.Messages)),
	})
	if err != nil {
		return nil, err
	}

	// Extract content
	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// toAnthropicMessages folds system messages into the opening user turn and
// merges consecutive turns of the same role, since the Messages API expects
// alternating user and assistant turns starting with the user.
func toAnthropicMessages(in []ChatMessage) []anthropic.MessageParam {
	turns := mergeTurns(in)
	messages := make([]anthropic.MessageParam, len(turns))
	for i, turn := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, len(turn.parts))
		for j, text := range turn.parts {
			blocks[j] = anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(text),
			}
		}
		messages[i] = anthropic.MessageParam{
			Role:    anthropic.F(anthropic.MessageParamRole(turn.role)),
			Content: anthropic.F(blocks),
		}
	}
	return messages
}

type turn struct {
	role  string
	parts []string
}

func mergeTurns(in []ChatMessage) []turn {
	var system []string
	var turns []turn
	for _, msg := range in {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == msg.Role {
			turns[n-1].parts = append(turns[n-1].parts, msg.Content)
			continue
		}
		turns = append(turns, turn{role: msg.Role, parts: []string{msg.Content}})
	}

	if len(system) > 0 {
		instructions := strings.Join(system, "\n\n")
		if len(turns) > 0 && turns[0].role == "user" {
			turns[0].parts = append([]string{instructions}, turns[0].parts...)
		} else {
			turns = append([]turn{{role: "user", parts: []string{instructions}}}, turns...)
		}
	} else if len(turns) > 0 && turns[0].role != "user" {
		turns = append([]turn{{role: "user", parts: []string{"(earlier conversation)"}}}, turns...)
	}
	return turns
}
