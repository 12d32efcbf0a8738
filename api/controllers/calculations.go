package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	"github.com/obinnaeke/tradelane-backend/api/validators"
	calcsvc "github.com/obinnaeke/tradelane-backend/internal/calculations"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

type recordCalculationRequest struct {
	Kind   string          `json:"kind" validate:"required"`
	Input  json.RawMessage `json:"input" validate:"required"`
	Result json.RawMessage `json:"result" validate:"required"`
}

// CalculationRecord stores one calculation run against the monthly quota.
func CalculationRecord(svc calcsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := businessFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordCalculationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		calculation, err := svc.Record(r.Context(), calcsvc.RecordInput{
			BusinessID: businessID,
			Kind:       payload.Kind,
			Input:      payload.Input,
			Result:     payload.Result,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, calculation)
	}
}

// CalculationList pages the caller's calculation history.
func CalculationList(svc calcsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		params := calcsvc.ListParams{
			BusinessID: businessID,
			Limit:      limit,
			Cursor:     r.URL.Query().Get("cursor"),
		}
		if kind := r.URL.Query().Get("kind"); kind != "" {
			params.Kind = &kind
		}

		list, err := svc.ListForBusiness(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
