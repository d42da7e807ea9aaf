package controllers

import (
	"net/http"

	"github.com/tinkerly/tinkerly-backend/api/responses"
	"github.com/tinkerly/tinkerly-backend/internal/projects"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

// UserProjects returns the caller's projects with dashboard statistics. A
// storage outage answers 200 with an empty, degraded view.
func UserProjects(svc projects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "project service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dashboard, err := svc.Dashboard(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}
