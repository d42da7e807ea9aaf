package controllers

import (
	"net/http"
	"strings"

	"github.com/tinkerly/tinkerly-backend/api/middleware"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

// resolveUserID reconciles a body userId with the authenticated caller. An
// authenticated caller may only act for themselves.
func resolveUserID(r *http.Request, bodyUserID string) (string, error) {
	bodyUserID = strings.TrimSpace(bodyUserID)
	tokenUserID := middleware.UserIDFromContext(r.Context())
	switch {
	case tokenUserID != "" && bodyUserID != "" && tokenUserID != bodyUserID:
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "userId does not match the authenticated user")
	case bodyUserID != "":
		return bodyUserID, nil
	case tokenUserID != "":
		return tokenUserID, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "userId is required").
		WithDetails(map[string]string{"userId": "is required"})
}

func requireUserID(r *http.Request) (string, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

func idempotencyNonce(r *http.Request) string {
	if key := middleware.IdempotencyKeyFromContext(r.Context()); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
}
