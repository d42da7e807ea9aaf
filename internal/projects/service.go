package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

// CreditReader reports a user's remaining purchased credits.
type CreditReader interface {
	Get(ctx context.Context, userID string) (*models.Entitlement, error)
}

// Dashboard is the user's project list with its summary.
type Dashboard struct {
	Projects []models.Project `json:"projects"`
	Stats    Stats            `json:"stats"`
	Degraded bool             `json:"degraded"`
}

type Service interface {
	Dashboard(ctx context.Context, userID string) (Dashboard, error)
}

type ServiceParams struct {
	Repo         Repository
	Entitlements CreditReader
	Logger       *logger.Logger
}

type service struct {
	repo         Repository
	entitlements CreditReader
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("project repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: params.Repo, entitlements: params.Entitlements, logg: logg}, nil
}

// Dashboard never fails on storage errors: it answers an empty, degraded view.
func (s *service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Dashboard{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ctx = s.logg.WithUserID(ctx, userID)

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "failed to list projects, serving degraded dashboard", err)
		return degraded(), nil
	}
	if rows == nil {
		rows = []models.Project{}
	}

	view := Dashboard{Projects: rows, Stats: Summarize(rows)}
	if s.entitlements != nil {
		ent, err := s.entitlements.Get(ctx, userID)
		if err != nil {
			s.logg.Error(ctx, "failed to load credits, serving degraded dashboard", err)
			view.Degraded = true
		} else if ent != nil {
			view.Stats.CreditsRemaining = ent.Credits
		}
	}
	return view, nil
}

func degraded() Dashboard {
	return Dashboard{Projects: []models.Project{}, Stats: Summarize(nil), Degraded: true}
}
