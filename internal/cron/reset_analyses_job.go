package cron

import (
	"context"
	"errors"
)

const ResetAnalysesJobName = "reset-analyses"

type analysesResetter interface {
	ResetAnalyses(ctx context.Context) (int64, error)
}

// ResetAnalysesJob zeroes every user's analysis counter for the new period.
type ResetAnalysesJob struct {
	entitlements analysesResetter
}

func NewResetAnalysesJob(entitlements analysesResetter) (*ResetAnalysesJob, error) {
	if entitlements == nil {
		return nil, errors.New("entitlement service required")
	}
	return &ResetAnalysesJob{entitlements: entitlements}, nil
}

func (j *ResetAnalysesJob) Name() string { return ResetAnalysesJobName }

func (j *ResetAnalysesJob) Run(ctx context.Context) (int64, error) {
	return j.entitlements.ResetAnalyses(ctx)
}
