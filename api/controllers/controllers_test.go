package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obinnaeke/tradelane-backend/api/middleware"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

type testIdentity struct {
	userID     uuid.UUID
	businessID uuid.UUID
	role       enums.UserRole
}

func newTestIdentity(role enums.UserRole) testIdentity {
	return testIdentity{
		userID:     uuid.New(),
		businessID: uuid.New(),
		role:       role,
	}
}

// authedRequest seeds the context the auth middleware would have populated.
func authedRequest(req *http.Request, identity testIdentity) *http.Request {
	ctx := middleware.WithUserID(req.Context(), identity.userID.String())
	ctx = middleware.WithRole(ctx, string(identity.role))
	ctx = middleware.WithBusinessID(ctx, identity.businessID.String())
	return req.WithContext(ctx)
}

// withURLParam attaches a chi route parameter for handlers called outside a
// router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func doJSON(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}
