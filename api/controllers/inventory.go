package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	"github.com/obinnaeke/tradelane-backend/api/validators"
	inventorysvc "github.com/obinnaeke/tradelane-backend/internal/inventory"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

type adjustInventoryRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Delta     int       `json:"delta" validate:"required"`
	EventType string    `json:"event_type" validate:"required"`
	Reason    *string   `json:"reason"`
	Reference *string   `json:"reference"`
}

// InventoryAdjust records a manual stock movement on one of the caller's
// products. Sales and refund restocks never come through here; those
// movements are written by the payment lifecycle.
func InventoryAdjust(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventType, err := enums.ParseLedgerEventType(payload.EventType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type"))
			return
		}
		if eventType == enums.LedgerEventTypeSale {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sale movements are recorded by the payment lifecycle"))
			return
		}

		if payload.Reason != nil {
			clean := validators.SanitizeString(*payload.Reason, 500)
			payload.Reason = &clean
		}

		movement, err := svc.Adjust(r.Context(), inventorysvc.AdjustInput{
			ProductID: payload.ProductID,
			ActorID:   actor.SubjectID,
			Delta:     payload.Delta,
			EventType: eventType,
			Reason:    payload.Reason,
			Reference: payload.Reference,
			SellerID:  &businessID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}

// InventoryMovements pages the movement history for the caller's business,
// optionally filtered to one product or event type.
func InventoryMovements(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := businessFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := inventorysvc.ListMovementsParams{
			SellerID: businessID,
			Limit:    limit,
			Cursor:   r.URL.Query().Get("cursor"),
		}
		if raw := r.URL.Query().Get("product_id"); raw != "" {
			productID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product_id"))
				return
			}
			params.ProductID = &productID
		}
		if raw := r.URL.Query().Get("event_type"); raw != "" {
			eventType, err := enums.ParseLedgerEventType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type"))
				return
			}
			params.EventType = &eventType
		}

		list, err := svc.ListMovements(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
