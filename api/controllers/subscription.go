package controllers

import (
	"fmt"
	"net/http"

	"github.com/tinkerly/tinkerly-backend/api/responses"
	"github.com/tinkerly/tinkerly-backend/api/validators"
	"github.com/tinkerly/tinkerly-backend/internal/entitlements"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

type subscriptionUpdateRequest struct {
	PixieTier            string `json:"pixieTier" validate:"required,max=64"`
	StripeSubscriptionID string `json:"stripeSubscriptionId" validate:"omitempty,max=255"`
}

type subscriptionUpdateResponse struct {
	Success   bool   `json:"success"`
	PixieTier string `json:"pixieTier"`
	Message   string `json:"message"`
}

// SubscriptionUpdate applies a client-reported tier after verifying the
// subscription with the processor.
func SubscriptionUpdate(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionUpdateRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.VerifyAndApplyTierUpdate(r.Context(), entitlements.TierUpdateInput{
			UserID:         userID,
			Tier:           payload.PixieTier,
			SubscriptionID: payload.StripeSubscriptionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier := string(row.Tier)
		responses.WriteSuccess(w, subscriptionUpdateResponse{
			Success:   true,
			PixieTier: tier,
			Message:   fmt.Sprintf("subscription updated to %s", tier),
		})
	}
}
