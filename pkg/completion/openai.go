package completion

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/oraculum/oraculum/internal/observability"
	"github.com/oraculum/oraculum/pkg/conversation"
)

// OpenAIGateway implements Gateway using the OpenAI chat completions API.
type OpenAIGateway struct {
	client openai.Client
	opts   Options
}

// NewOpenAIGateway creates an OpenAI-backed gateway. Extra request options
// are passed through to the client (used by tests to point at a stub server).
func NewOpenAIGateway(apiKey string, opts Options, reqOpts ...option.RequestOption) *OpenAIGateway {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)
	return &OpenAIGateway{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Provider returns the provider name.
func (g *OpenAIGateway) Provider() string {
	return "openai"
}

// Complete makes one chat completion call with the given history.
func (g *OpenAIGateway) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case conversation.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case conversation.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.opts.Model),
		Messages: messages,
	}
	if g.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.opts.MaxTokens))
	}
	if g.opts.Temperature > 0 {
		params.Temperature = openai.Float(g.opts.Temperature)
	}

	start := time.Now()
	response, err := g.client.Chat.Completions.New(ctx, params)
	observability.RecordCompletion(g.Provider(), time.Since(start), err == nil)

	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			log.Warn().
				Int("status", apierr.StatusCode).
				Msg("OpenAI completion failed")
			return "", &UpstreamError{Status: apierr.StatusCode, Message: "completion request rejected"}
		}
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return response.Choices[0].Message.Content, nil
}
