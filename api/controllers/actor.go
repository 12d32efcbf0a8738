package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/api/middleware"
	"github.com/obinnaeke/tradelane-backend/internal/payments"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

// actorFromRequest resolves the authenticated caller from the request
// context. The auth middleware guarantees a subject on protected routes;
// a missing or malformed one still fails closed here.
func actorFromRequest(r *http.Request) (payments.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return payments.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	subjectID, err := uuid.Parse(userID)
	if err != nil {
		return payments.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid subject id")
	}

	actor := payments.Actor{SubjectID: subjectID}
	if role, parseErr := enums.ParseUserRole(middleware.RoleFromContext(r.Context())); parseErr == nil {
		actor.Role = role
	}
	if raw := middleware.BusinessIDFromContext(r.Context()); raw != "" {
		if businessID, parseErr := uuid.Parse(raw); parseErr == nil {
			actor.BusinessID = businessID
		}
	}
	return actor, nil
}

// businessFromRequest resolves the caller's business scope, required on
// seller and billing surfaces.
func businessFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.BusinessIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "business context missing")
	}
	businessID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id")
	}
	return businessID, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}

func requestMeta(r *http.Request) payments.RequestMeta {
	meta := payments.RequestMeta{}
	if ip := clientIP(r); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
