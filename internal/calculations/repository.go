package calculations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

// Repository manages persistence for calculation usage records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, calculation *models.Calculation) error
	ListForBusiness(ctx context.Context, params listParams) ([]models.Calculation, *pagination.Cursor, error)
	CountForBusinessSince(ctx context.Context, businessID uuid.UUID, since time.Time) (int64, error)
}

type listParams struct {
	BusinessID uuid.UUID
	Kind       *string
	Limit      int
	Cursor     *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a calculations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, calculation *models.Calculation) error {
	return r.db.WithContext(ctx).Create(calculation).Error
}

func (r *repository) ListForBusiness(ctx context.Context, params listParams) ([]models.Calculation, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Calculation{}).
		Where("business_id = ?", params.BusinessID)
	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var calculations []models.Calculation
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&calculations).Error; err != nil {
		return nil, nil, err
	}

	if len(calculations) > normalized {
		next := calculations[normalized]
		calculations = calculations[:normalized]
		return calculations, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return calculations, nil, nil
}

func (r *repository) CountForBusinessSince(ctx context.Context, businessID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Calculation{}).
		Where("business_id = ? AND created_at >= ?", businessID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
