package chat

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/codescope/codescope/internal/errors"
)

// DefaultOpenAIModel is the default chat-completions model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider generates answers through the OpenAI chat completions
// API or any endpoint speaking the same protocol.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI-compatible generation provider.
// The key is required; baseURL overrides the endpoint for compatible
// servers.
func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is not set (export OPENAI_API_KEY)")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Generate streams the completion for prompt, invoking onDelta per token
// fragment.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, onDelta func(string) error) error {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		if isConnectionError(err) {
			return errors.GenerationUnavailable(err)
		}
		return fmt.Errorf("chat completion failed: %w", err)
	}
	return nil
}

// ModelName returns the generation model.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// UnavailableMessage returns the OpenAI setup instructions.
func (p *OpenAIProvider) UnavailableMessage() string {
	return "**Error: the generation API is not reachable.**\n\n" +
		"Check that OPENAI_API_KEY is set, the endpoint is correct, and the network is up, then ask again."
}
