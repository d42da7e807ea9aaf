package analysis

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	pkgopenai "github.com/tinkerly/tinkerly-backend/pkg/openai"
)

// Provider sends a prompt to a language model and returns its raw reply.
type Provider interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ChatCompleter is the go-openai surface used by OpenAIProvider.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type OpenAIProvider struct {
	client    ChatCompleter
	model     string
	maxTokens int
}

// NewOpenAIProvider returns nil when the client is not configured.
func NewOpenAIProvider(client *pkgopenai.Client) *OpenAIProvider {
	if client == nil || client.API() == nil {
		return nil
	}
	return &OpenAIProvider{client: client.API(), model: client.Model(), maxTokens: client.MaxTokens()}
}

func newProviderWithCompleter(c ChatCompleter, model string, maxTokens int) *OpenAIProvider {
	return &OpenAIProvider{client: c, model: model, maxTokens: maxTokens}
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if p == nil || p.client == nil {
		return "", pkgerrors.New(pkgerrors.CodeConfig, "analysis provider is not configured")
	}
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: 0.2,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt.User},
		},
	})
	if err != nil {
		return "", translateProviderError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "analysis provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func translateProviderError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "analysis provider timed out")
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		details := map[string]any{"httpStatus": apiErr.HTTPStatusCode}
		if apiErr.Type != "" {
			details["type"] = apiErr.Type
		}
		if code, ok := apiErr.Code.(string); ok && code != "" {
			details["code"] = code
		}
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("analysis provider error: %s", apiErr.Message)).
			WithDetails(details)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "analysis provider request failed").
			WithDetails(map[string]any{"httpStatus": reqErr.HTTPStatusCode})
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "analysis provider request failed")
}
