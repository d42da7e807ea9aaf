package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tinkerly/tinkerly-backend/api/responses"
	"github.com/tinkerly/tinkerly-backend/api/validators"
	checkoutsvc "github.com/tinkerly/tinkerly-backend/internal/checkout"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

type createSubscriptionRequest struct {
	TierID        string `json:"tierId" validate:"required,max=64"`
	BillingPeriod string `json:"billingPeriod" validate:"required,max=32"`
	UserID        string `json:"userId" validate:"omitempty,max=128"`
}

type createProjectPaymentRequest struct {
	ProjectID    string          `json:"projectId" validate:"required,uuid"`
	Amount       decimal.Decimal `json:"amount"`
	UserID       string          `json:"userId" validate:"omitempty,max=128"`
	ProjectTitle string          `json:"projectTitle" validate:"required,max=200"`
	Timeline     string          `json:"timeline" validate:"max=200"`
	Complexity   string          `json:"complexity" validate:"max=64"`
}

type purchaseCreditsRequest struct {
	PackageType string `json:"packageType" validate:"required,max=64"`
	UserID      string `json:"userId" validate:"omitempty,max=128"`
}

type createCreditSessionRequest struct {
	PackageID string `json:"packageId" validate:"required,max=64"`
}

type sessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type subscriptionSessionResponse struct {
	URL       string                        `json:"url"`
	SessionID string                        `json:"sessionId"`
	Debug     checkoutsvc.SubscriptionDebug `json:"debug"`
}

type creditSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateSubscription opens a recurring checkout session for a tier. Free tiers
// answer with the local dashboard redirect and an empty session id.
func CreateSubscription(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createSubscriptionRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := resolveUserID(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSubscriptionSession(r.Context(), checkoutsvc.Intent{
			UserID:         userID,
			CatalogEntryID: payload.TierID,
			BillingPeriod:  payload.BillingPeriod,
			Nonce:          idempotencyNonce(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, subscriptionSessionResponse{
			URL:       result.RedirectURL,
			SessionID: result.SessionID,
			Debug:     result.Debug,
		})
	}
}

// CreateProjectPayment opens a one-off checkout session for a scoped project.
func CreateProjectPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createProjectPaymentRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
				WithDetails(map[string]string{"amount": "must be greater than 0"}))
			return
		}
		userID, err := resolveUserID(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := svc.CreateProjectPaymentSession(r.Context(), checkoutsvc.ProjectIntent{
			UserID:     userID,
			ProjectID:  payload.ProjectID,
			Amount:     payload.Amount,
			Title:      validators.SanitizeString(payload.ProjectTitle, 200),
			Timeline:   validators.SanitizeString(payload.Timeline, 200),
			Complexity: validators.SanitizeString(payload.Complexity, 64),
			Nonce:      idempotencyNonce(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sessionResponse{URL: sess.RedirectURL, SessionID: sess.SessionID})
	}
}

// PurchaseCredits opens a one-off checkout session for a credit package.
func PurchaseCredits(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload purchaseCreditsRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := resolveUserID(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := svc.CreateCreditSession(r.Context(), checkoutsvc.Intent{
			UserID:         userID,
			CatalogEntryID: payload.PackageType,
			Nonce:          idempotencyNonce(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sessionResponse{URL: sess.RedirectURL, SessionID: sess.SessionID})
	}
}

// CreateCreditSession is the authenticated credit purchase used by the
// embedded checkout; it answers with the session id only.
func CreateCreditSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCreditSessionRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := svc.CreateCreditSession(r.Context(), checkoutsvc.Intent{
			UserID:         userID,
			CatalogEntryID: payload.PackageID,
			Nonce:          idempotencyNonce(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, creditSessionResponse{SessionID: sess.SessionID})
	}
}
