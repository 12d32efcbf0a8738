package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/internal/payments"
	dbpkg "github.com/obinnaeke/tradelane-backend/pkg/db"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

type paymentLifecycle interface {
	UpdateStatus(ctx context.Context, input payments.UpdateStatusInput) (*models.Payment, error)
	RecordAuditEvent(ctx context.Context, event payments.AuditEvent)
}

// Service admits processor callbacks exactly once and prunes old dedup rows.
type Service interface {
	VerifySignature(body []byte, signature string) bool
	IsProcessed(ctx context.Context, transactionRef string) (bool, error)
	MarkProcessed(ctx context.Context, transactionRef, eventType string, signature *string) (*models.WebhookEvent, bool, error)
	Process(ctx context.Context, input ProcessInput) (*Result, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (*PruneResult, error)
}

// ProcessInput is one decoded processor callback.
type ProcessInput struct {
	TransactionRef string
	Status         string
	ProcessorRef   *string
	EventType      string
	Signature      *string
	Meta           payments.RequestMeta
}

// Result reports the outcome of one delivery.
type Result struct {
	Payment          *models.Payment `json:"payment,omitempty"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// PruneResult reports one retention batch.
type PruneResult struct {
	Deleted int64 `json:"deleted"`
	HasMore bool  `json:"hasMore"`
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Repo     Repository
	Payments paymentLifecycle
	Secret   string
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	payments paymentLifecycle
	secret   []byte
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the webhook intake service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook repository required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment lifecycle required")
	}
	if params.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook secret required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		secret:   []byte(params.Secret),
		logg:     params.Logger,
		now:      now,
	}, nil
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body in constant
// time.
func (s *service) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *service) IsProcessed(ctx context.Context, transactionRef string) (bool, error) {
	_, err := s.repo.FindByTransactionRef(ctx, transactionRef)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook event")
	}
	return true, nil
}

// MarkProcessed records the delivery. The unique index on transaction_ref is
// the race arbiter: the first committed insert wins, a losing insert
// re-fetches the winner and reports the duplicate.
func (s *service) MarkProcessed(ctx context.Context, transactionRef, eventType string, signature *string) (*models.WebhookEvent, bool, error) {
	if transactionRef == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}

	event := &models.WebhookEvent{
		TransactionRef: transactionRef,
		EventType:      eventType,
		Signature:      signature,
		ProcessedAt:    s.now().UTC(),
	}
	err := s.repo.Create(ctx, event)
	if err == nil {
		return event, false, nil
	}
	if !dbpkg.IsUniqueViolation(err, "") {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}

	existing, fetchErr := s.repo.FindByTransactionRef(ctx, transactionRef)
	if fetchErr != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, fetchErr, "load winning webhook event")
	}
	return existing, true, nil
}

// Process runs one callback end to end: dedup, then the payment transition.
// When the transition fails the dedup row is removed so the processor's own
// retry can land as a first delivery.
func (s *service) Process(ctx context.Context, input ProcessInput) (*Result, error) {
	if input.TransactionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	status, err := enums.ParsePaymentStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	processed, err := s.IsProcessed(ctx, input.TransactionRef)
	if err != nil {
		return nil, err
	}
	if processed {
		s.auditDuplicate(ctx, input)
		return &Result{AlreadyProcessed: true}, nil
	}

	event, already, err := s.MarkProcessed(ctx, input.TransactionRef, input.EventType, input.Signature)
	if err != nil {
		return nil, err
	}
	if already {
		s.auditDuplicate(ctx, input)
		return &Result{AlreadyProcessed: true}, nil
	}

	payment, err := s.payments.UpdateStatus(ctx, payments.UpdateStatusInput{
		TransactionRef: input.TransactionRef,
		Status:         status,
		ProcessorRef:   input.ProcessorRef,
		Meta:           input.Meta,
	})
	if err != nil {
		s.releaseEvent(ctx, event.ID)
		return nil, err
	}

	s.payments.RecordAuditEvent(ctx, payments.AuditEvent{
		PaymentID: &payment.ID,
		Action:    enums.AuditActionWebhookAccepted,
		Status:    auditStatus(payment.Status),
		Meta:      input.Meta,
	})
	return &Result{Payment: payment}, nil
}

// PruneOlderThan deletes one batch of dedup rows created before cutoff.
// HasMore flips when a full batch went, so callers loop until exhausted.
func (s *service) PruneOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (*PruneResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff, batchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune webhook events")
	}
	return &PruneResult{
		Deleted: deleted,
		HasMore: deleted == int64(batchSize),
	}, nil
}

func (s *service) auditDuplicate(ctx context.Context, input ProcessInput) {
	s.payments.RecordAuditEvent(ctx, payments.AuditEvent{
		Action: enums.AuditActionWebhookDuplicate,
		Status: &input.Status,
		Meta:   input.Meta,
	})
}

func (s *service) releaseEvent(ctx context.Context, id uuid.UUID) {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.logg.Error(ctx, "release webhook event for retry", err)
	}
}

func auditStatus(status enums.PaymentStatus) *string {
	value := string(status)
	return &value
}
