package limits

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/types"
)

// DefaultLimits is the explicit no-subscription tier. A business that never
// subscribed (or whose subscription lapsed) gets the most restrictive
// ceilings rather than a magic constant per call site.
var DefaultLimits = types.PlanLimits{Products: 5, Orders: 10, Calculations: 5}

// Unlimited is the sentinel a plan uses to lift a ceiling.
const Unlimited = -1

type subscriptionSource interface {
	Current(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)
}

type productCounter interface {
	CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error)
}

type orderCounter interface {
	CountForBuyerSince(ctx context.Context, buyerID uuid.UUID, since time.Time) (int64, error)
}

type calculationCounter interface {
	CountForBusinessSince(ctx context.Context, businessID uuid.UUID, since time.Time) (int64, error)
}

// Service checks and enforces plan usage ceilings. Usage is counted fresh
// from source tables on every call, never cached.
type Service interface {
	Check(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) (*Result, error)
	Enforce(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) error
}

// Result reports one feature's usage against its ceiling.
type Result struct {
	Feature   enums.PlanFeature `json:"feature"`
	Allowed   bool              `json:"allowed"`
	Current   int64             `json:"current"`
	Limit     int               `json:"limit"`
	Unlimited bool              `json:"unlimited"`
}

// ServiceParams groups dependencies for the limits service.
type ServiceParams struct {
	Subscriptions subscriptionSource
	Products      productCounter
	Orders        orderCounter
	Calculations  calculationCounter
	Now           func() time.Time
}

type service struct {
	subscriptions subscriptionSource
	products      productCounter
	orders        orderCounter
	calculations  calculationCounter
	now           func() time.Time
}

// NewService builds a limits service.
func NewService(params ServiceParams) (Service, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription source required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product counter required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order counter required")
	}
	if params.Calculations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "calculation counter required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		subscriptions: params.Subscriptions,
		products:      params.Products,
		orders:        params.Orders,
		calculations:  params.Calculations,
		now:           params.Now,
	}, nil
}

func (s *service) Check(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) (*Result, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	if !feature.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan feature")
	}

	ceilings, err := s.ceilingsFor(ctx, businessID)
	if err != nil {
		return nil, err
	}
	limit := ceilings.For(feature.String())

	result := &Result{Feature: feature, Limit: limit}
	if limit == Unlimited {
		result.Allowed = true
		result.Unlimited = true
		return result, nil
	}

	current, err := s.usageFor(ctx, businessID, feature)
	if err != nil {
		return nil, err
	}
	result.Current = current
	result.Allowed = current < int64(limit)
	return result, nil
}

func (s *service) Enforce(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) error {
	result, err := s.Check(ctx, businessID, feature)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return pkgerrors.New(pkgerrors.CodePlanLimit, "plan limit exceeded").WithDetails(result)
	}
	return nil
}

// ceilingsFor reads the business's live plan limits, falling back to the
// no-subscription tier.
func (s *service) ceilingsFor(ctx context.Context, businessID uuid.UUID) (types.PlanLimits, error) {
	subscription, err := s.subscriptions.Current(ctx, businessID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return DefaultLimits, nil
		}
		return types.PlanLimits{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if subscription == nil || !subscription.Status.GrantsAccess() {
		return DefaultLimits, nil
	}
	if subscription.Plan == nil {
		return DefaultLimits, nil
	}
	return subscription.Plan.Limits, nil
}

func (s *service) usageFor(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) (int64, error) {
	switch feature {
	case enums.PlanFeatureProducts:
		count, err := s.products.CountBySeller(ctx, businessID)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
		}
		return count, nil
	case enums.PlanFeatureOrders:
		count, err := s.orders.CountForBuyerSince(ctx, businessID, monthStart(s.now()))
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
		}
		return count, nil
	case enums.PlanFeatureCalculations:
		count, err := s.calculations.CountForBusinessSince(ctx, businessID, monthStart(s.now()))
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count calculations")
		}
		return count, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan feature")
	}
}

// monthStart returns the first instant of the current calendar month in UTC.
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
