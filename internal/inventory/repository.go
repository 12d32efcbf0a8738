package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

// Repository manages persistence for stock movements and the product
// quantity they roll up to.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	UpdateProductQuantity(ctx context.Context, productID uuid.UUID, quantity int) error
	CreateMovement(ctx context.Context, movement *models.InventoryTransaction) error
	ListMovements(ctx context.Context, params listMovementsParams) ([]models.InventoryTransaction, *pagination.Cursor, error)
}

type listMovementsParams struct {
	SellerID  uuid.UUID
	ProductID *uuid.UUID
	EventType *enums.LedgerEventType
	Limit     int
	Cursor    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindProductForUpdate locks the product row for the remainder of the
// transaction so concurrent adjustments serialize on it.
func (r *repository) FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) UpdateProductQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("quantity", quantity).Error
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, params listMovementsParams) ([]models.InventoryTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.InventoryTransaction{}).
		Where("seller_id = ?", params.SellerID)
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.EventType != nil {
		query = query.Where("event_type = ?", *params.EventType)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var movements []models.InventoryTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&movements).Error; err != nil {
		return nil, nil, err
	}

	if len(movements) > normalized {
		next := movements[normalized]
		movements = movements[:normalized]
		return movements, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return movements, nil, nil
}
