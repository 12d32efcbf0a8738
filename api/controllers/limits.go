package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	limitsvc "github.com/obinnaeke/tradelane-backend/internal/limits"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

// LimitCheck reports the caller's usage of one plan feature against its
// ceiling. Read-only; enforcement happens inside the feature's own service.
func LimitCheck(svc limitsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := businessFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		feature, err := enums.ParsePlanFeature(chi.URLParam(r, "feature"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown feature"))
			return
		}

		result, err := svc.Check(r.Context(), businessID, feature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
