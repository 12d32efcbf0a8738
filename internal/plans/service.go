package plans

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

// Service exposes the plan catalog to checkout and subscription flows.
type Service interface {
	List(ctx context.Context) ([]models.SubscriptionPlan, error)
	GetBySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
}

type service struct {
	repo Repository
}

// NewService wires a plans service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]models.SubscriptionPlan, error) {
	plans, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return plans, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error) {
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan slug required")
	}
	plan, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	return plan, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	return plan, nil
}

// PriceFor returns the plan's price for the billing cycle.
func PriceFor(plan *models.SubscriptionPlan, cycle enums.BillingCycle) (decimal.Decimal, error) {
	if plan == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	switch cycle {
	case enums.BillingCycleMonthly:
		return plan.PriceMonthly, nil
	case enums.BillingCycleAnnual:
		return plan.PriceAnnual, nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}
}
