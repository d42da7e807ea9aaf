package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tinkerly/tinkerly-backend/api/middleware"
	"github.com/tinkerly/tinkerly-backend/api/responses"
	"github.com/tinkerly/tinkerly-backend/api/validators"
	"github.com/tinkerly/tinkerly-backend/internal/analysis"
	"github.com/tinkerly/tinkerly-backend/internal/entitlements"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

const remainingHeader = "X-Analyses-Remaining"

type analyzeProjectRequest struct {
	ProjectData *projectDataRequest `json:"projectData" validate:"required"`
}

type projectDataRequest struct {
	Title        string `json:"title" validate:"max=200"`
	Description  string `json:"description" validate:"max=10000"`
	Category     string `json:"category" validate:"max=100"`
	Requirements string `json:"requirements" validate:"max=10000"`
}

// quotaService is the slice of the entitlement service the analysis route needs.
type quotaService interface {
	ConsumeAnalysis(ctx context.Context, userID string) (entitlements.Quota, error)
	RefundAnalysis(ctx context.Context, userID string, source entitlements.QuotaSource) error
}

// AnalyzeProject scopes a project with the language model. Authenticated
// callers reserve one analysis before the provider call and get it back when
// the analysis fails; anonymous callers are throttled by the route's rate limit.
func AnalyzeProject(svc analysis.Service, quota quotaService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analysis service unavailable"))
			return
		}

		var payload analyzeProjectRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		charged := userID != "" && quota != nil
		var reserved entitlements.Quota
		if charged {
			var err error
			if reserved, err = quota.ConsumeAnalysis(ctx, userID); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		result, err := svc.Analyze(ctx, analysis.ProjectData{
			Title:        payload.ProjectData.Title,
			Description:  payload.ProjectData.Description,
			Category:     payload.ProjectData.Category,
			Requirements: payload.ProjectData.Requirements,
		})
		if err != nil {
			if charged {
				// The refund must land even when the client has gone away.
				if refundErr := quota.RefundAnalysis(context.WithoutCancel(ctx), userID, reserved.Source); refundErr != nil && logg != nil {
					logg.Error(ctx, "analysis.refund_failed", refundErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if charged {
			w.Header().Set(remainingHeader, strconv.Itoa(reserved.Remaining()))
		}

		responses.WriteSuccess(w, result)
	}
}
