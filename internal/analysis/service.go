package analysis

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Service scopes a project with the language model.
type Service interface {
	Analyze(ctx context.Context, data ProjectData) (Result, error)
}

// ServiceParams groups dependencies. A nil Provider answers CONFIG_ERROR.
type ServiceParams struct {
	Provider Provider
	Timeout  time.Duration
	Metrics  *metrics.AnalysisMetrics
	Logger   *logger.Logger
}

type service struct {
	provider Provider
	timeout  time.Duration
	metrics  *metrics.AnalysisMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) Service {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	provider := params.Provider
	if p, ok := provider.(*OpenAIProvider); ok && p == nil {
		provider = nil
	}
	return &service{provider: provider, timeout: timeout, metrics: params.Metrics, logg: logg}
}

func (s *service) Analyze(ctx context.Context, data ProjectData) (Result, error) {
	prompt, err := BuildPrompt(data)
	if err != nil {
		s.metrics.IncOutcome("invalid")
		return Result{}, err
	}
	if s.provider == nil {
		s.metrics.IncOutcome("unconfigured")
		return Result{}, pkgerrors.New(pkgerrors.CodeConfig, "analysis provider is not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	raw, err := s.provider.Complete(callCtx, prompt)
	s.metrics.ObserveProvider(time.Since(started))
	if err != nil {
		s.metrics.IncOutcome("provider_error")
		s.logg.Error(ctx, "analysis provider call failed", err)
		return Result{}, err
	}

	result, err := ParseResponse(raw)
	if err != nil {
		s.metrics.IncOutcome("parse_error")
		s.logg.Error(ctx, "analysis response rejected", err)
		return Result{}, err
	}

	s.metrics.IncOutcome("success")
	ctx = s.logg.WithFields(ctx, map[string]any{
		"complexity": result.ComplexityScore,
		"cost":       fmt.Sprintf("%.2f", result.EstimatedCost),
	})
	s.logg.Info(ctx, "project analyzed")
	return result, nil
}
