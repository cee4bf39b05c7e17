package completion

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/oraculum/oraculum/internal/observability"
	"github.com/oraculum/oraculum/pkg/conversation"
)

// AnthropicGateway implements Gateway using the Anthropic messages API.
type AnthropicGateway struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropicGateway creates an Anthropic-backed gateway.
func NewAnthropicGateway(apiKey string, opts Options, reqOpts ...option.RequestOption) *AnthropicGateway {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)
	return &AnthropicGateway{
		client: anthropic.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Provider returns the provider name.
func (g *AnthropicGateway) Provider() string {
	return "anthropic"
}

// Complete makes one messages call with the given history. System turns are
// lifted into the system parameter; the rest keep their order.
func (g *AnthropicGateway) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	var system string
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleSystem:
			system = turn.Content
		case conversation.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(turn.Content),
			))
		case conversation.RoleAssistant:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(turn.Content),
				},
			})
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.opts.Model),
		Messages:  messages,
		MaxTokens: int64(g.opts.MaxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if g.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(g.opts.Temperature)
	}

	start := time.Now()
	response, err := g.client.Messages.New(ctx, params)
	observability.RecordCompletion(g.Provider(), time.Since(start), err == nil)

	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			log.Warn().
				Int("status", apierr.StatusCode).
				Msg("Anthropic completion failed")
			return "", &UpstreamError{Status: apierr.StatusCode, Message: "completion request rejected"}
		}
		return "", err
	}

	var content string
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	if content == "" {
		return "", ErrEmptyCompletion
	}

	return content, nil
}
