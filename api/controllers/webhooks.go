package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	paymentsvc "github.com/obinnaeke/tradelane-backend/internal/payments"
	webhooksvc "github.com/obinnaeke/tradelane-backend/internal/webhooks"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

const webhookSignatureHeader = "X-Tradelane-Signature"

const maxWebhookBody = 1 << 20 // 1 MiB

type paymentWebhookPayload struct {
	TransactionReference string  `json:"transaction_reference"`
	Status               string  `json:"status"`
	ProcessorReference   *string `json:"processor_reference"`
	EventType            string  `json:"event_type"`
}

type paymentAuditor interface {
	RecordAuditEvent(ctx context.Context, event paymentsvc.AuditEvent)
}

// PaymentWebhook receives processor callbacks. The signature covers the raw
// body; the dedup layer guarantees the transition runs at most once no
// matter how often the processor retries.
func PaymentWebhook(svc webhooksvc.Service, auditor paymentAuditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(webhookSignatureHeader))
		if !svc.VerifySignature(body, signature) {
			reason := "invalid webhook signature"
			auditor.RecordAuditEvent(r.Context(), paymentsvc.AuditEvent{
				Action: enums.AuditActionWebhookRejected,
				Error:  &reason,
				Meta:   requestMeta(r),
			})
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, reason))
			return
		}

		var payload paymentWebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload"))
			return
		}
		if payload.TransactionReference == "" || payload.Status == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction_reference and status required"))
			return
		}

		result, err := svc.Process(r.Context(), webhooksvc.ProcessInput{
			TransactionRef: payload.TransactionReference,
			Status:         payload.Status,
			ProcessorRef:   payload.ProcessorReference,
			EventType:      payload.EventType,
			Signature:      &signature,
			Meta:           requestMeta(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
