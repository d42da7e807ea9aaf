package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tinkerly/tinkerly-backend/api/responses"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
)

type jobTrigger interface {
	Trigger(ctx context.Context, name string) (int64, error)
}

type cronResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CronJob runs a registered job on demand. Callers are authenticated by CronAuth.
func CronJob(trigger jobTrigger, jobName string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trigger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cron service unavailable"))
			return
		}

		affected, err := trigger.Trigger(r.Context(), jobName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cronResponse{
			Success: true,
			Message: fmt.Sprintf("%s completed: %d records updated", jobName, affected),
		})
	}
}
