package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

type stubProvider struct {
	reply    string
	err      error
	calls    int
	deadline bool
}

func (p *stubProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	p.calls++
	_, p.deadline = ctx.Deadline()
	return p.reply, p.err
}

type stubCompleter struct {
	req  goopenai.ChatCompletionRequest
	resp goopenai.ChatCompletionResponse
	err  error
}

func (c *stubCompleter) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	c.req = req
	return c.resp, c.err
}

func TestAnalyzeSuccess(t *testing.T) {
	provider := &stubProvider{reply: validReply}
	svc := NewService(ServiceParams{Provider: provider, Timeout: time.Second})

	res, err := svc.Analyze(context.Background(), ProjectData{Title: "Booking", Description: "Salon booking"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EstimatedCost != 9000 {
		t.Fatalf("unexpected cost %v", res.EstimatedCost)
	}
	if !provider.deadline {
		t.Fatalf("expected provider call under a deadline")
	}
}

func TestAnalyzeMissingFieldsSkipsProvider(t *testing.T) {
	provider := &stubProvider{reply: validReply}
	svc := NewService(ServiceParams{Provider: provider})

	_, err := svc.Analyze(context.Background(), ProjectData{Title: "Booking"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestAnalyzeWithoutProviderIsConfigError(t *testing.T) {
	var provider *OpenAIProvider
	svc := NewService(ServiceParams{Provider: provider})
	_, err := svc.Analyze(context.Background(), ProjectData{Title: "t", Description: "d"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestAnalyzePropagatesParseError(t *testing.T) {
	svc := NewService(ServiceParams{Provider: &stubProvider{reply: "not json"}})
	_, err := svc.Analyze(context.Background(), ProjectData{Title: "t", Description: "d"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestOpenAIProviderComplete(t *testing.T) {
	completer := &stubCompleter{resp: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{Message: goopenai.ChatCompletionMessage{Content: validReply}}},
	}}
	provider := newProviderWithCompleter(completer, goopenai.GPT4oMini, 1500)

	out, err := provider.Complete(context.Background(), Prompt{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != validReply {
		t.Fatalf("unexpected output %q", out)
	}
	if completer.req.Model != goopenai.GPT4oMini || completer.req.MaxTokens != 1500 {
		t.Fatalf("unexpected request %+v", completer.req)
	}
	if len(completer.req.Messages) != 2 || completer.req.Messages[0].Role != goopenai.ChatMessageRoleSystem {
		t.Fatalf("expected system and user messages")
	}
}

func TestOpenAIProviderErrors(t *testing.T) {
	completer := &stubCompleter{err: &goopenai.APIError{Message: "rate limited", Type: "requests", HTTPStatusCode: 429, Code: "rate_limit_exceeded"}}
	provider := newProviderWithCompleter(completer, "m", 10)
	_, err := provider.Complete(context.Background(), Prompt{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGateway {
		t.Fatalf("expected gateway error, got %v", err)
	}
	details := typed.Details().(map[string]any)
	if details["httpStatus"] != 429 || details["code"] != "rate_limit_exceeded" {
		t.Fatalf("unexpected details %+v", details)
	}

	completer.err = context.DeadlineExceeded
	if _, err := provider.Complete(context.Background(), Prompt{}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	completer.err = nil
	completer.resp = goopenai.ChatCompletionResponse{}
	if _, err := provider.Complete(context.Background(), Prompt{}); !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error for empty choices, got %v", err)
	}
}
