package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// Repository manages subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, subscription *models.Subscription) error
	FindOpenByBusiness(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)
	FindLatestByBusiness(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	DeleteTerminal(ctx context.Context, businessID uuid.UUID) error
	ListDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Omit("Plan").Create(subscription).Error
}

// FindOpenByBusiness returns the business's non-terminal subscription. The
// partial unique index guarantees at most one.
func (r *repository) FindOpenByBusiness(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("business_id = ? AND status NOT IN ?", businessID, terminalStatuses()).
		First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) FindLatestByBusiness(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("business_id = ?", businessID).
		Order("created_at DESC, id DESC").
		First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) Update(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Omit("Plan").Save(subscription).Error
}

func (r *repository) DeleteTerminal(ctx context.Context, businessID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessID, terminalStatuses()).
		Delete(&models.Subscription{}).Error
}

// ListDue returns subscriptions whose period has elapsed and that the sweep
// can actually advance. past_due rows without a pending cancel stay put until
// a renewal payment arrives, so they are excluded rather than re-read forever.
func (r *repository) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	var due []models.Subscription
	err := r.db.WithContext(ctx).
		Where("current_period_end <= ?", cutoff).
		Where("status IN ? OR (status = ? AND cancel_at_period_end)",
			[]enums.SubscriptionStatus{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusActive},
			enums.SubscriptionStatusPastDue).
		Order("current_period_end ASC, id ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func terminalStatuses() []enums.SubscriptionStatus {
	return []enums.SubscriptionStatus{
		enums.SubscriptionStatusCancelled,
		enums.SubscriptionStatusExpired,
	}
}
