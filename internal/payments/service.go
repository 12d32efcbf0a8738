package payments

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/internal/checkout"
	"github.com/obinnaeke/tradelane-backend/internal/subscriptions"
	dbpkg "github.com/obinnaeke/tradelane-backend/pkg/db"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	dbtypes "github.com/obinnaeke/tradelane-backend/pkg/db/types"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox/payloads"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

const transactionRefPrefix = "tl_pay_"

// buyerFeeRate is charged on order payments only, on top of the cart
// subtotal.
var buyerFeeRate = decimal.New(1, -2)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type checkoutEngine interface {
	Snapshot(ctx context.Context, buyer checkout.Buyer) (*checkout.CartSnapshot, error)
	FulfillFromSnapshot(ctx context.Context, tx *gorm.DB, payment *models.Payment, snapshot checkout.CartSnapshot) ([]models.Order, error)
}

type subscriptionActivator interface {
	ActivateFromPayment(ctx context.Context, tx *gorm.DB, intent subscriptions.ActivationIntent, paymentID uuid.UUID) (*models.Subscription, error)
	MarkPastDue(ctx context.Context, tx *gorm.DB, businessID uuid.UUID) error
}

type planCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies the caller for ownership checks and the audit trail.
type Actor struct {
	SubjectID  uuid.UUID
	BusinessID uuid.UUID
	Role       enums.UserRole
}

// RequestMeta carries network details into the audit trail.
type RequestMeta struct {
	IPAddress *string
	UserAgent *string
}

// CreateInput opens a pending payment. Amount, when provided, is checked
// against the computed total; the server never trusts a client total.
type CreateInput struct {
	Amount         *decimal.Decimal
	Currency       string
	Type           enums.PaymentType
	Metadata       json.RawMessage
	IdempotencyKey *string
	Meta           RequestMeta
}

// UpdateStatusInput applies one processor signal to a payment.
type UpdateStatusInput struct {
	TransactionRef string
	Status         enums.PaymentStatus
	ProcessorRef   *string
	Meta           RequestMeta
}

// RefundInput records a refund executed out of band.
type RefundInput struct {
	Amount    decimal.Decimal
	Reason    string
	Reference *string
	Meta      RequestMeta
}

// ListParams filters an owner's payment history.
type ListParams struct {
	Status string
	Type   string
	Limit  int
	Cursor string
}

// PaymentList is one page of payments with an opaque continuation cursor.
type PaymentList struct {
	Items  []models.Payment `json:"items"`
	Cursor string           `json:"cursor,omitempty"`
}

// TransitionDetails explains a rejected status transition.
type TransitionDetails struct {
	From enums.PaymentStatus `json:"from"`
	To   enums.PaymentStatus `json:"to"`
}

// AuditEvent is one best-effort entry for the payment audit trail.
type AuditEvent struct {
	PaymentID *uuid.UUID
	UserID    *uuid.UUID
	Action    enums.AuditAction
	Status    *string
	Error     *string
	Meta      RequestMeta
}

// Service drives the payment lifecycle.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Payment, bool, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, actor Actor, params ListParams) (*PaymentList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Payment, error)
	RecordRefund(ctx context.Context, actor Actor, paymentID uuid.UUID, input RefundInput) (*models.Payment, error)
	RecordAuditEvent(ctx context.Context, event AuditEvent)
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Repo          Repository
	Checkout      checkoutEngine
	Subscriptions subscriptionActivator
	Plans         planCatalog
	Tx            txRunner
	Outbox        outboxPublisher
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	repo          Repository
	checkout      checkoutEngine
	subscriptions subscriptionActivator
	plans         planCatalog
	tx            txRunner
	outbox        outboxPublisher
	logg          *logger.Logger
	now           func() time.Time
}

// NewService builds the payments service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout engine required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription activator required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plan catalog required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:          params.Repo,
		checkout:      params.Checkout,
		subscriptions: params.Subscriptions,
		plans:         params.Plans,
		tx:            params.Tx,
		outbox:        params.Outbox,
		logg:          params.Logger,
		now:           params.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Payment, bool, error) {
	if actor.SubjectID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "subject id required")
	}
	if actor.BusinessID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	if !input.Type.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	currency, err := normalizeCurrency(input.Currency)
	if err != nil {
		return nil, false, err
	}

	var key, hash string
	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		key = *input.IdempotencyKey
		hash = requestHash(input.Type, currency, input.Amount, input.Metadata)
		existing, replayed, err := s.replayByKey(ctx, actor.SubjectID, key, hash)
		if err != nil || replayed {
			return existing, replayed, err
		}
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		OwnerID:        actor.SubjectID,
		TransactionRef: transactionRefPrefix + uuid.NewString(),
		Currency:       currency,
		Status:         enums.PaymentStatusPending,
		PaymentType:    input.Type,
	}
	if key != "" {
		payment.IdempotencyKey = &key
		payment.RequestHash = &hash
	}

	switch input.Type {
	case enums.PaymentTypeOrder:
		snapshot, err := s.checkout.Snapshot(ctx, checkout.Buyer{SubjectID: actor.SubjectID, BusinessID: actor.BusinessID})
		if err != nil {
			return nil, false, err
		}
		subtotal := snapshot.Subtotal()
		payment.Amount = subtotal.Add(subtotal.Mul(buyerFeeRate).Round(2))
		raw, err := encodeMetadata(snapshot)
		if err != nil {
			return nil, false, err
		}
		payment.Metadata = raw
	case enums.PaymentTypeSubscription:
		intent, err := decodeActivationIntent(input.Metadata)
		if err != nil {
			return nil, false, err
		}
		// The authenticated business pays for itself; the client value is
		// not trusted.
		intent.BusinessID = actor.BusinessID
		plan, err := s.plans.GetByID(ctx, intent.PlanID)
		if err != nil {
			return nil, false, err
		}
		if !plan.IsActive {
			return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "plan unavailable")
		}
		payment.Amount = planPrice(plan, intent.Cycle)
		raw, err := encodeMetadata(intent)
		if err != nil {
			return nil, false, err
		}
		payment.Metadata = raw
	}

	if input.Amount != nil && !input.Amount.Equal(payment.Amount) {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the computed total").
			WithDetails(map[string]string{"expected": payment.Amount.StringFixed(2)})
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if key != "" && dbpkg.IsUniqueViolation(err, "idempotency_key") {
			existing, replayed, replayErr := s.replayByKey(ctx, actor.SubjectID, key, hash)
			if replayErr != nil {
				return nil, false, replayErr
			}
			if replayed {
				return existing, true, nil
			}
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	s.RecordAuditEvent(ctx, AuditEvent{
		PaymentID: &payment.ID,
		UserID:    &actor.SubjectID,
		Action:    enums.AuditActionPaymentCreated,
		Status:    statusString(payment.Status),
		Meta:      input.Meta,
	})
	return payment, false, nil
}

// replayByKey returns the payment already recorded under the caller's
// idempotency key, refusing keys reused for a different request.
func (s *service) replayByKey(ctx context.Context, ownerID uuid.UUID, key, hash string) (*models.Payment, bool, error) {
	existing, err := s.repo.FindByOwnerAndKey(ctx, ownerID, key)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotency key")
	}
	if existing.RequestHash != nil && *existing.RequestHash != hash {
		return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request")
	}
	return existing, true, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if actor.Role != enums.UserRoleAdmin && payment.OwnerID != actor.SubjectID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not the payment owner")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, actor Actor, params ListParams) (*PaymentList, error) {
	if actor.SubjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id required")
	}
	filter, err := buildListFilter(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByOwner(ctx, actor.SubjectID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	list := &PaymentList{Items: rows}
	if next != nil {
		list.Cursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

// UpdateStatus applies a processor signal. Success is a write-once gate:
// repeated or contradicting signals after success return the current row
// untouched so fulfilment cannot run twice.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Payment, error) {
	if input.TransactionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	var payment *models.Payment
	var advanced bool
	var fulfilmentSkipped error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByTransactionRefForUpdate(ctx, input.TransactionRef)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		payment = found

		if payment.Status == enums.PaymentStatusSuccess || payment.Status == input.Status {
			return nil
		}
		if payment.Status != enums.PaymentStatusPending || !pendingTarget(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot transition").
				WithDetails(TransitionDetails{From: payment.Status, To: input.Status})
		}

		payment.Status = input.Status
		if input.ProcessorRef != nil {
			payment.ProcessorRef = input.ProcessorRef
		}

		switch input.Status {
		case enums.PaymentStatusSuccess:
			now := s.now().UTC()
			payment.SucceededAt = &now
			fulfilmentSkipped, err = s.dispatchSuccess(ctx, tx, payment)
			if err != nil {
				return err
			}
		case enums.PaymentStatusFailed:
			s.handleFailure(ctx, tx, payment)
		}

		if err := repo.Update(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		advanced = true
		return s.emitStatusEvent(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	if advanced {
		s.RecordAuditEvent(ctx, AuditEvent{
			PaymentID: &payment.ID,
			Action:    enums.AuditActionStatusChanged,
			Status:    statusString(payment.Status),
			Meta:      input.Meta,
		})
	}
	if fulfilmentSkipped != nil {
		s.logg.Error(ctx, "payment metadata malformed, fulfilment skipped", fulfilmentSkipped)
		message := fulfilmentSkipped.Error()
		s.RecordAuditEvent(ctx, AuditEvent{
			PaymentID: &payment.ID,
			Action:    enums.AuditActionFulfilmentSkip,
			Status:    statusString(payment.Status),
			Error:     &message,
			Meta:      input.Meta,
		})
	}
	return payment, nil
}

// dispatchSuccess runs the type-specific fulfilment inside the status
// transaction. Malformed stored metadata is returned as a skip, not an error:
// the money moved, so success stands and the gap is audited. Real fulfilment
// failures abort the transaction so the processor's retry can land.
func (s *service) dispatchSuccess(ctx context.Context, tx *gorm.DB, payment *models.Payment) (error, error) {
	switch payment.PaymentType {
	case enums.PaymentTypeOrder:
		snapshot, decodeErr := decodeCartSnapshot(payment.Metadata)
		if decodeErr != nil {
			return decodeErr, nil
		}
		created, err := s.checkout.FulfillFromSnapshot(ctx, tx, payment, *snapshot)
		if err != nil {
			return nil, err
		}
		// order_id points at the first order; order_ids records the
		// whole per-seller split.
		payment.OrderID = &created[0].ID
		ids := make(dbtypes.UUIDArray, 0, len(created))
		for _, order := range created {
			ids = append(ids, order.ID)
		}
		payment.OrderIDs = ids
	case enums.PaymentTypeSubscription:
		intent, decodeErr := decodeActivationIntent(payment.Metadata)
		if decodeErr == nil && intent.BusinessID == uuid.Nil {
			decodeErr = pkgerrors.New(pkgerrors.CodeValidation, "subscription intent missing business")
		}
		if decodeErr != nil {
			return decodeErr, nil
		}
		subscription, err := s.subscriptions.ActivateFromPayment(ctx, tx, *intent, payment.ID)
		if err != nil {
			return nil, err
		}
		payment.SubscriptionID = &subscription.ID
	}
	return nil, nil
}

// handleFailure demotes the paying business's subscription when a renewal
// charge fails. Order payments need nothing: stock only moves on success.
func (s *service) handleFailure(ctx context.Context, tx *gorm.DB, payment *models.Payment) {
	if payment.PaymentType != enums.PaymentTypeSubscription {
		return
	}
	intent, err := decodeActivationIntent(payment.Metadata)
	if err != nil || intent.BusinessID == uuid.Nil {
		s.logg.Warn(ctx, "failed subscription payment carries no usable intent")
		return
	}
	if err := s.subscriptions.MarkPastDue(ctx, tx, intent.BusinessID); err != nil {
		s.logg.Error(ctx, "mark subscription past due", err)
	}
}

func (s *service) RecordRefund(ctx context.Context, actor Actor, paymentID uuid.UUID, input RefundInput) (*models.Payment, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		payment = found

		if payment.Status != enums.PaymentStatusSuccess && payment.Status != enums.PaymentStatusPartiallyRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not refundable").
				WithDetails(TransitionDetails{From: payment.Status, To: enums.PaymentStatusRefunded})
		}
		remaining := payment.Amount.Sub(payment.RefundedAmount)
		if input.Amount.GreaterThan(remaining) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds the remaining amount").
				WithDetails(map[string]string{"remaining": remaining.StringFixed(2)})
		}

		now := s.now().UTC()
		payment.RefundedAmount = payment.RefundedAmount.Add(input.Amount)
		if payment.RefundedAmount.Equal(payment.Amount) {
			payment.Status = enums.PaymentStatusRefunded
		} else {
			payment.Status = enums.PaymentStatusPartiallyRefunded
		}
		if input.Reason != "" {
			payment.RefundReason = &input.Reason
		}
		if input.Reference != nil {
			payment.RefundRef = input.Reference
		}
		payment.RefundedAt = &now

		if err := repo.Update(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentRefundedEvent{
				PaymentID:      payment.ID,
				TransactionRef: payment.TransactionRef,
				RefundRef:      payment.RefundRef,
				Amount:         input.Amount,
				TotalRefunded:  payment.RefundedAmount,
				Status:         payment.Status,
				Reason:         input.Reason,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.RecordAuditEvent(ctx, AuditEvent{
		PaymentID: &payment.ID,
		UserID:    &actor.SubjectID,
		Action:    enums.AuditActionRefundRecorded,
		Status:    statusString(payment.Status),
		Meta:      input.Meta,
	})
	return payment, nil
}

// RecordAuditEvent appends one audit row. The trail is observability, not
// correctness: failures are logged and swallowed.
func (s *service) RecordAuditEvent(ctx context.Context, event AuditEvent) {
	entry := &models.PaymentAuditLog{
		ID:        uuid.New(),
		PaymentID: event.PaymentID,
		UserID:    event.UserID,
		Action:    event.Action,
		Status:    event.Status,
		IPAddress: event.Meta.IPAddress,
		UserAgent: event.Meta.UserAgent,
		Error:     event.Error,
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logg.Error(ctx, "payment audit write failed", err)
	}
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	var eventType enums.OutboxEventType
	switch payment.Status {
	case enums.PaymentStatusSuccess:
		eventType = enums.EventPaymentSucceeded
	case enums.PaymentStatusFailed:
		eventType = enums.EventPaymentFailed
	default:
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentStatusEvent{
			PaymentID:      payment.ID,
			TransactionRef: payment.TransactionRef,
			Status:         payment.Status,
			PaymentType:    payment.PaymentType,
			Amount:         payment.Amount,
			Currency:       payment.Currency,
		},
		Version: 1,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
	}
	return nil
}

func pendingTarget(status enums.PaymentStatus) bool {
	switch status {
	case enums.PaymentStatusSuccess, enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

func planPrice(plan *models.SubscriptionPlan, cycle enums.BillingCycle) decimal.Decimal {
	if cycle == enums.BillingCycleAnnual {
		return plan.PriceAnnual
	}
	return plan.PriceMonthly
}

func normalizeCurrency(raw string) (enums.Currency, error) {
	if raw == "" {
		return enums.CurrencyUSD, nil
	}
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	return currency, nil
}

func statusString(status enums.PaymentStatus) *string {
	value := status.String()
	return &value
}

func buildListFilter(params ListParams) (ListFilter, error) {
	filter := ListFilter{Limit: params.Limit}
	if params.Status != "" {
		status, err := enums.ParsePaymentStatus(params.Status)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &status
	}
	if params.Type != "" {
		paymentType, err := enums.ParsePaymentType(params.Type)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		filter.Type = &paymentType
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor
	return filter, nil
}
