package plans

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

type fakeRepository struct {
	listActiveFn func(ctx context.Context) ([]models.SubscriptionPlan, error)
	findBySlugFn func(ctx context.Context, slug string) (*models.SubscriptionPlan, error)
	findByIDFn   func(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) ListActive(ctx context.Context) ([]models.SubscriptionPlan, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx)
	}
	return nil, nil
}

func (f *fakeRepository) FindBySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error) {
	if f.findBySlugFn != nil {
		return f.findBySlugFn(ctx, slug)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func TestService_GetBySlug(t *testing.T) {
	plan := &models.SubscriptionPlan{ID: uuid.New(), Slug: "growth", Name: "Growth"}
	repo := &fakeRepository{
		findBySlugFn: func(ctx context.Context, slug string) (*models.SubscriptionPlan, error) {
			if slug == plan.Slug {
				return plan, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	got, err := svc.GetBySlug(context.Background(), "growth")
	if err != nil {
		t.Fatalf("GetBySlug error: %v", err)
	}
	if got.ID != plan.ID {
		t.Fatalf("unexpected plan: %+v", got)
	}

	_, err = svc.GetBySlug(context.Background(), "missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.GetBySlug(context.Background(), "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPriceFor(t *testing.T) {
	plan := &models.SubscriptionPlan{
		Slug:         "growth",
		PriceMonthly: decimal.NewFromFloat(49.99),
		PriceAnnual:  decimal.NewFromFloat(499.99),
	}

	monthly, err := PriceFor(plan, enums.BillingCycleMonthly)
	if err != nil {
		t.Fatalf("PriceFor monthly error: %v", err)
	}
	if !monthly.Equal(plan.PriceMonthly) {
		t.Fatalf("unexpected monthly price: %s", monthly)
	}

	annual, err := PriceFor(plan, enums.BillingCycleAnnual)
	if err != nil {
		t.Fatalf("PriceFor annual error: %v", err)
	}
	if !annual.Equal(plan.PriceAnnual) {
		t.Fatalf("unexpected annual price: %s", annual)
	}

	if _, err := PriceFor(plan, enums.BillingCycle("weekly")); err == nil {
		t.Fatal("expected validation error for unknown cycle")
	}
	if _, err := PriceFor(nil, enums.BillingCycleMonthly); err == nil {
		t.Fatal("expected error for nil plan")
	}
}
