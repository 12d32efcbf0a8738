package controllers

import (
	"net/http"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	checkoutsvc "github.com/obinnaeke/tradelane-backend/internal/checkout"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

// Checkout converts the caller's cart into one pending order per seller.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		businessID, err := businessFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Checkout(r.Context(), checkoutsvc.Buyer{
			SubjectID:  actor.SubjectID,
			BusinessID: businessID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"orders": orders,
		})
	}
}
