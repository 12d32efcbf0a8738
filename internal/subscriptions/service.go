package subscriptions

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/obinnaeke/tradelane-backend/pkg/db"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox/payloads"
)

const (
	monthlyPeriod = 30 * 24 * time.Hour
	annualPeriod  = 365 * 24 * time.Hour

	fallbackTrialDays = 14

	// DefaultSweepBatchSize bounds one sweep transaction.
	DefaultSweepBatchSize = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type planCatalog interface {
	GetBySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ActivationIntent is the subscription half of the payment metadata union.
// It is written at payment-creation time and consumed on payment success.
type ActivationIntent struct {
	PlanID     uuid.UUID          `json:"plan_id"`
	BusinessID uuid.UUID          `json:"business_id"`
	Cycle      enums.BillingCycle `json:"cycle"`
}

// CreateInput starts a subscription for a business.
type CreateInput struct {
	BusinessID uuid.UUID
	PlanSlug   string
	Cycle      enums.BillingCycle
	WithTrial  bool
}

// SweepResult reports one sweep batch.
type SweepResult struct {
	Advanced int  `json:"advanced"`
	HasMore  bool `json:"hasMore"`
}

// Service drives the subscription billing state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Subscription, error)
	Current(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)
	ActivateFromPayment(ctx context.Context, tx *gorm.DB, intent ActivationIntent, paymentID uuid.UUID) (*models.Subscription, error)
	MarkPastDue(ctx context.Context, tx *gorm.DB, businessID uuid.UUID) error
	Cancel(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)
	Reactivate(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)
	ChangePlan(ctx context.Context, businessID uuid.UUID, planSlug string) (*models.Subscription, error)
	Sweep(ctx context.Context, cutoff time.Time, batchSize int) (*SweepResult, error)
}

// ServiceParams groups dependencies for the subscriptions service.
type ServiceParams struct {
	Repo   Repository
	Plans  planCatalog
	Tx     txRunner
	Outbox outboxPublisher
	Now    func() time.Time
}

type service struct {
	repo   Repository
	plans  planCatalog
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds the subscriptions service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
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
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:   params.Repo,
		plans:  params.Plans,
		tx:     params.Tx,
		outbox: params.Outbox,
		now:    params.Now,
	}, nil
}

func cyclePeriod(cycle enums.BillingCycle) time.Duration {
	if cycle == enums.BillingCycleAnnual {
		return annualPeriod
	}
	return monthlyPeriod
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Subscription, error) {
	if input.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	if !input.Cycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}
	plan, err := s.plans.GetBySlug(ctx, input.PlanSlug)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan unavailable")
	}

	var subscription *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindOpenByBusiness(ctx, input.BusinessID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription already exists")
		} else if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		// A replaced business keeps only its live row.
		if err := repo.DeleteTerminal(ctx, input.BusinessID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete superseded subscriptions")
		}

		now := s.now().UTC()
		subscription = &models.Subscription{
			ID:                 uuid.New(),
			BusinessID:         input.BusinessID,
			PlanID:             plan.ID,
			Status:             enums.SubscriptionStatusActive,
			BillingCycle:       input.Cycle,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.Add(cyclePeriod(input.Cycle)),
		}
		if input.WithTrial {
			trialDays := plan.TrialDays
			if trialDays <= 0 {
				trialDays = fallbackTrialDays
			}
			trialEnd := now.Add(time.Duration(trialDays) * 24 * time.Hour)
			subscription.Status = enums.SubscriptionStatusTrialing
			subscription.CurrentPeriodEnd = trialEnd
			subscription.TrialEndsAt = &trialEnd
		}

		if err := repo.Create(ctx, subscription); err != nil {
			// A concurrent create landed first; the partial unique index is
			// the arbiter.
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "subscription already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}

		if subscription.Status == enums.SubscriptionStatusActive {
			return s.emitStatusEvent(ctx, tx, enums.EventSubscriptionActivated, subscription)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	subscription.Plan = plan
	return subscription, nil
}

func (s *service) Current(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	subscription, err := s.repo.FindOpenByBusiness(ctx, businessID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return subscription, nil
}

// ActivateFromPayment applies a paid intent inside the payment's transaction.
// Paying again is an explicit continuation, so trial state and any pending
// cancellation intent are cleared.
func (s *service) ActivateFromPayment(ctx context.Context, tx *gorm.DB, intent ActivationIntent, paymentID uuid.UUID) (*models.Subscription, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if intent.BusinessID == uuid.Nil || intent.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription intent")
	}
	if !intent.Cycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	// The plan may have been retired since the intent was written; the buyer
	// paid for it, so only existence is checked here.
	if _, err := s.plans.GetByID(ctx, intent.PlanID); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	now := s.now().UTC()

	subscription, err := repo.FindOpenByBusiness(ctx, intent.BusinessID)
	if err != nil {
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		subscription = &models.Subscription{
			ID:         uuid.New(),
			BusinessID: intent.BusinessID,
		}
		err = nil
	}

	subscription.PlanID = intent.PlanID
	subscription.Status = enums.SubscriptionStatusActive
	subscription.BillingCycle = intent.Cycle
	subscription.CurrentPeriodStart = now
	subscription.CurrentPeriodEnd = now.Add(cyclePeriod(intent.Cycle))
	subscription.TrialEndsAt = nil
	subscription.CancelAtPeriodEnd = false
	subscription.CanceledAt = nil
	subscription.LastPaymentID = &paymentID

	if subscription.CreatedAt.IsZero() {
		if err := repo.Create(ctx, subscription); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
	} else {
		if err := repo.Update(ctx, subscription); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
	}

	if err := s.emitStatusEvent(ctx, tx, enums.EventSubscriptionActivated, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

// MarkPastDue records a failed renewal. Only active subscriptions renew, so
// trials keep their access until their own end and past_due rows stay put.
func (s *service) MarkPastDue(ctx context.Context, tx *gorm.DB, businessID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if businessID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}

	repo := s.repo.WithTx(tx)
	subscription, err := repo.FindOpenByBusiness(ctx, businessID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if subscription.Status != enums.SubscriptionStatusActive {
		return nil
	}
	subscription.Status = enums.SubscriptionStatusPastDue
	if err := repo.Update(ctx, subscription); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}

	var subscription *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindLatestByBusiness(ctx, businessID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no subscription")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if found.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already ended")
		}
		subscription = found
		if subscription.CancelAtPeriodEnd {
			return nil
		}

		now := s.now().UTC()
		subscription.CancelAtPeriodEnd = true
		subscription.CanceledAt = &now
		if err := repo.Update(ctx, subscription); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}

		// Access persists until the period ends; the sweep performs the
		// actual transition. Downstream only gets a heads-up.
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   subscription.ID,
			Data: payloads.NotificationRequestedEvent{
				RecipientID: subscription.BusinessID,
				Type:        "subscription_cancellation_scheduled",
				ResourceID:  &subscription.ID,
				Message:     "subscription will end at the close of the current billing period",
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *service) Reactivate(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}

	subscription, err := s.repo.FindLatestByBusiness(ctx, businessID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if subscription.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already ended")
	}
	if !subscription.CancelAtPeriodEnd {
		return subscription, nil
	}

	subscription.CancelAtPeriodEnd = false
	subscription.CanceledAt = nil
	if err := s.repo.Update(ctx, subscription); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return subscription, nil
}

func (s *service) ChangePlan(ctx context.Context, businessID uuid.UUID, planSlug string) (*models.Subscription, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	plan, err := s.plans.GetBySlug(ctx, planSlug)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan unavailable")
	}

	subscription, err := s.repo.FindOpenByBusiness(ctx, businessID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if !subscription.Status.GrantsAccess() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription cannot change plans")
	}

	// The period is untouched; the new ceilings apply immediately and the
	// next renewal charges the new plan.
	subscription.PlanID = plan.ID
	if err := s.repo.Update(ctx, subscription); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	subscription.Plan = plan
	return subscription, nil
}

// Sweep advances every subscription whose period has elapsed. One call
// processes one batch in one transaction; callers loop while HasMore.
func (s *service) Sweep(ctx context.Context, cutoff time.Time, batchSize int) (*SweepResult, error) {
	if cutoff.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cutoff required")
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}

	result := &SweepResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		due, err := repo.ListDue(ctx, cutoff, batchSize)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
		}

		for i := range due {
			subscription := &due[i]
			event, ok := advance(subscription, s.now().UTC())
			if !ok {
				continue
			}
			if err := repo.Update(ctx, subscription); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance subscription")
			}
			if event != "" {
				if err := s.emitStatusEvent(ctx, tx, event, subscription); err != nil {
					return err
				}
			}
			result.Advanced++
		}
		result.HasMore = len(due) == batchSize && result.Advanced == batchSize
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// advance applies the elapsed-period rules to one subscription and reports
// the outbox event to emit, if any.
func advance(subscription *models.Subscription, now time.Time) (enums.OutboxEventType, bool) {
	switch {
	case subscription.Status == enums.SubscriptionStatusTrialing:
		subscription.Status = enums.SubscriptionStatusExpired
		return enums.EventSubscriptionExpired, true
	case subscription.CancelAtPeriodEnd:
		subscription.Status = enums.SubscriptionStatusCancelled
		if subscription.CanceledAt == nil {
			subscription.CanceledAt = &now
		}
		return enums.EventSubscriptionCancelled, true
	case subscription.Status == enums.SubscriptionStatusActive:
		subscription.Status = enums.SubscriptionStatusPastDue
		return "", true
	default:
		return "", false
	}
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, subscription *models.Subscription) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   subscription.ID,
		Data: payloads.SubscriptionStatusEvent{
			SubscriptionID:   subscription.ID,
			BusinessID:       subscription.BusinessID,
			PlanID:           subscription.PlanID,
			Status:           subscription.Status,
			BillingCycle:     subscription.BillingCycle,
			CurrentPeriodEnd: subscription.CurrentPeriodEnd,
		},
		Version: 1,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit subscription event")
	}
	return nil
}
