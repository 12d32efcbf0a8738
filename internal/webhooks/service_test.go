package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/internal/payments"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

type fakeRepo struct {
	createFn     func(ctx context.Context, event *models.WebhookEvent) error
	findFn       func(ctx context.Context, transactionRef string) (*models.WebhookEvent, error)
	deleteByIDFn func(ctx context.Context, id uuid.UUID) error
	deleteOldFn  func(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, event *models.WebhookEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	event.ID = uuid.New()
	return nil
}

func (f *fakeRepo) FindByTransactionRef(ctx context.Context, transactionRef string) (*models.WebhookEvent, error) {
	if f.findFn != nil {
		return f.findFn(ctx, transactionRef)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if f.deleteByIDFn != nil {
		return f.deleteByIDFn(ctx, id)
	}
	return nil
}

func (f *fakeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if f.deleteOldFn != nil {
		return f.deleteOldFn(ctx, cutoff, limit)
	}
	return 0, nil
}

type fakeLifecycle struct {
	updateFn func(ctx context.Context, input payments.UpdateStatusInput) (*models.Payment, error)
	audits   []payments.AuditEvent
}

func (f *fakeLifecycle) UpdateStatus(ctx context.Context, input payments.UpdateStatusInput) (*models.Payment, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, input)
	}
	return &models.Payment{ID: uuid.New(), Status: input.Status}, nil
}

func (f *fakeLifecycle) RecordAuditEvent(ctx context.Context, event payments.AuditEvent) {
	f.audits = append(f.audits, event)
}

func newTestService(t *testing.T, repo Repository, lifecycle paymentLifecycle) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Payments: lifecycle,
		Secret:   "test-secret",
		Logger:   logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard}),
		Now:      func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_VerifySignature(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRepo{}, &fakeLifecycle{})
	body := []byte(`{"transaction_reference":"tl_pay_x","status":"success"}`)

	if !svc.VerifySignature(body, computeTestSignature(body)) {
		t.Fatal("expected computed signature to verify")
	}
	if svc.VerifySignature(body, "") {
		t.Fatal("empty signature accepted")
	}
	if svc.VerifySignature([]byte("tampered"), computeTestSignature(body)) {
		t.Fatal("signature verified against different body")
	}
}

func TestService_ProcessFirstDelivery(t *testing.T) {
	t.Parallel()

	paymentID := uuid.New()
	lifecycle := &fakeLifecycle{
		updateFn: func(ctx context.Context, input payments.UpdateStatusInput) (*models.Payment, error) {
			if input.TransactionRef != "tl_pay_1" {
				t.Fatalf("unexpected transaction ref %q", input.TransactionRef)
			}
			if input.Status != enums.PaymentStatusSuccess {
				t.Fatalf("unexpected status %q", input.Status)
			}
			return &models.Payment{ID: paymentID, Status: enums.PaymentStatusSuccess}, nil
		},
	}
	svc := newTestService(t, &fakeRepo{}, lifecycle)

	result, err := svc.Process(context.Background(), ProcessInput{
		TransactionRef: "tl_pay_1",
		Status:         "success",
		EventType:      "payment.updated",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AlreadyProcessed {
		t.Fatal("first delivery flagged as duplicate")
	}
	if result.Payment == nil || result.Payment.ID != paymentID {
		t.Fatal("expected the transitioned payment in the result")
	}
	if len(lifecycle.audits) != 1 || lifecycle.audits[0].Action != enums.AuditActionWebhookAccepted {
		t.Fatalf("expected one webhook_accepted audit, got %+v", lifecycle.audits)
	}
}

func TestService_ProcessDuplicateShortCircuits(t *testing.T) {
	t.Parallel()

	lifecycle := &fakeLifecycle{
		updateFn: func(ctx context.Context, input payments.UpdateStatusInput) (*models.Payment, error) {
			t.Fatal("lifecycle invoked for duplicate delivery")
			return nil, nil
		},
	}
	repo := &fakeRepo{
		findFn: func(ctx context.Context, transactionRef string) (*models.WebhookEvent, error) {
			return &models.WebhookEvent{ID: uuid.New(), TransactionRef: transactionRef}, nil
		},
	}
	svc := newTestService(t, repo, lifecycle)

	result, err := svc.Process(context.Background(), ProcessInput{
		TransactionRef: "tl_pay_1",
		Status:         "success",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("duplicate delivery not flagged")
	}
	if len(lifecycle.audits) != 1 || lifecycle.audits[0].Action != enums.AuditActionWebhookDuplicate {
		t.Fatalf("expected a webhook_duplicate audit, got %+v", lifecycle.audits)
	}
}

func TestService_ProcessInsertRaceLoserReportsDuplicate(t *testing.T) {
	t.Parallel()

	winner := &models.WebhookEvent{ID: uuid.New(), TransactionRef: "tl_pay_1"}
	calls := 0
	repo := &fakeRepo{
		createFn: func(ctx context.Context, event *models.WebhookEvent) error {
			return errors.New(`duplicate key value violates unique constraint "idx_webhook_events_transaction_ref"`)
		},
		findFn: func(ctx context.Context, transactionRef string) (*models.WebhookEvent, error) {
			calls++
			if calls == 1 {
				// Pre-check misses: the concurrent writer has not committed yet.
				return nil, gorm.ErrRecordNotFound
			}
			return winner, nil
		},
	}
	svc := newTestService(t, repo, &fakeLifecycle{})

	result, err := svc.Process(context.Background(), ProcessInput{
		TransactionRef: "tl_pay_1",
		Status:         "success",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("losing insert not collapsed onto the winner")
	}
}

func TestService_ProcessFailureReleasesEvent(t *testing.T) {
	t.Parallel()

	var deleted *uuid.UUID
	repo := &fakeRepo{
		deleteByIDFn: func(ctx context.Context, id uuid.UUID) error {
			deleted = &id
			return nil
		},
	}
	lifecycle := &fakeLifecycle{
		updateFn: func(ctx context.Context, input payments.UpdateStatusInput) (*models.Payment, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "store unavailable")
		},
	}
	svc := newTestService(t, repo, lifecycle)

	_, err := svc.Process(context.Background(), ProcessInput{
		TransactionRef: "tl_pay_1",
		Status:         "failed",
	})
	if err == nil {
		t.Fatal("expected the lifecycle failure to propagate")
	}
	if deleted == nil {
		t.Fatal("dedup row not released for the processor retry")
	}
}

func TestService_ProcessRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRepo{}, &fakeLifecycle{})
	_, err := svc.Process(context.Background(), ProcessInput{
		TransactionRef: "tl_pay_1",
		Status:         "paid-in-full",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_PruneOlderThan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		deleted     int64
		batchSize   int
		wantHasMore bool
	}{
		{name: "full batch signals more work", deleted: 500, batchSize: 500, wantHasMore: true},
		{name: "short batch exhausts", deleted: 12, batchSize: 500, wantHasMore: false},
		{name: "nothing to delete", deleted: 0, batchSize: 500, wantHasMore: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := &fakeRepo{
				deleteOldFn: func(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
					if limit != tc.batchSize {
						t.Fatalf("unexpected batch size %d", limit)
					}
					return tc.deleted, nil
				},
			}
			svc := newTestService(t, repo, &fakeLifecycle{})

			result, err := svc.PruneOlderThan(context.Background(), time.Now().Add(-30*24*time.Hour), tc.batchSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Deleted != tc.deleted {
				t.Fatalf("deleted = %d, want %d", result.Deleted, tc.deleted)
			}
			if result.HasMore != tc.wantHasMore {
				t.Fatalf("hasMore = %v, want %v", result.HasMore, tc.wantHasMore)
			}
		})
	}
}

func computeTestSignature(body []byte) string {
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
