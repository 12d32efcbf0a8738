package controllers

import (
	"net/http"
	"time"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	"github.com/obinnaeke/tradelane-backend/api/validators"
	subscriptionsvc "github.com/obinnaeke/tradelane-backend/internal/subscriptions"
	webhooksvc "github.com/obinnaeke/tradelane-backend/internal/webhooks"
	"github.com/obinnaeke/tradelane-backend/pkg/config"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

// SubscriptionSweep advances one batch of subscriptions whose paid period
// has lapsed. The cron worker runs the same sweep on a schedule; this
// endpoint exists for operators to drain a backlog by hand.
func SubscriptionSweep(svc subscriptionsvc.Service, cfg config.SweepConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Sweep(r.Context(), time.Now().UTC(), cfg.SubscriptionBatchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{
			"advanced": result.Advanced,
			"has_more": result.HasMore,
		})
		logg.Info(ctx, "subscription sweep batch complete")
		responses.WriteSuccess(w, result)
	}
}

type webhookPruneRequest struct {
	RetentionDays *int `json:"retention_days"`
}

// WebhookEventPrune deletes one batch of webhook dedup rows older than the
// retention window. Replays older than the window become undetectable,
// which the processor contract allows. The body may override the configured
// window with {"retention_days": n}.
func WebhookEventPrune(svc webhooksvc.Service, cfg config.RetentionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		retentionDays := cfg.WebhookEventDays
		if r.ContentLength != 0 {
			var req webhookPruneRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if req.RetentionDays != nil {
				if *req.RetentionDays < 1 {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.New(pkgerrors.CodeValidation, "retention_days must be at least 1"))
					return
				}
				retentionDays = *req.RetentionDays
			}
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
		result, err := svc.PruneOlderThan(r.Context(), cutoff, cfg.PruneBatchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{
			"deleted":  result.Deleted,
			"has_more": result.HasMore,
			"cutoff":   cutoff,
		})
		logg.Info(ctx, "webhook event prune batch complete")
		responses.WriteSuccess(w, result)
	}
}
