package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

// DefaultLowStockThreshold applies when a product does not set its own.
const DefaultLowStockThreshold = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines stock adjustment and movement history operations.
type Service interface {
	Adjust(ctx context.Context, input AdjustInput) (*models.InventoryTransaction, error)
	AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.InventoryTransaction, error)
	ListMovements(ctx context.Context, params ListMovementsParams) (*MovementList, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// AdjustInput captures one stock change. Delta is signed; the movement row
// stores its magnitude together with a direction.
type AdjustInput struct {
	ProductID uuid.UUID
	ActorID   uuid.UUID
	Delta     int
	EventType enums.LedgerEventType
	Reason    *string
	Reference *string
	// SellerID, when set, requires the product to belong to that seller.
	SellerID *uuid.UUID
}

// ListMovementsParams configures pagination and filters for movement history.
type ListMovementsParams struct {
	SellerID  uuid.UUID
	ProductID *uuid.UUID
	EventType *enums.LedgerEventType
	Limit     int
	Cursor    string
}

// MovementList wraps returned movements and the cursor for the next page.
type MovementList struct {
	Items  []models.InventoryTransaction `json:"items"`
	Cursor string                        `json:"cursor"`
}

// NewService wires an inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryTransaction, error) {
	var movement *models.InventoryTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.AdjustTx(ctx, tx, input)
		if err != nil {
			return err
		}
		movement = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// AdjustTx applies a stock change inside the caller's transaction. The
// product row is locked before the check-then-write so two concurrent sales
// cannot drive the quantity below zero.
func (s *service) AdjustTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.InventoryTransaction, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	eventType := input.EventType
	if eventType == "" {
		if input.Delta > 0 {
			eventType = enums.LedgerEventTypeRestock
		} else {
			eventType = enums.LedgerEventTypeAdjustment
		}
	}
	if !eventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	repo := s.repo.WithTx(tx)
	product, err := repo.FindProductForUpdate(ctx, input.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
	}
	if input.SellerID != nil && product.SellerID != *input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}

	newQuantity := product.Quantity + input.Delta
	if newQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock")
	}

	direction := enums.LedgerDirectionIn
	quantity := input.Delta
	if input.Delta < 0 {
		direction = enums.LedgerDirectionOut
		quantity = -input.Delta
	}

	movement := &models.InventoryTransaction{
		ProductID:        product.ID,
		SellerID:         product.SellerID,
		EventType:        eventType,
		Direction:        direction,
		Quantity:         quantity,
		PreviousQuantity: product.Quantity,
		NewQuantity:      newQuantity,
		Reason:           input.Reason,
		Reference:        input.Reference,
		ActorID:          input.ActorID,
	}

	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record movement")
	}
	if err := repo.UpdateProductQuantity(ctx, product.ID, newQuantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product quantity")
	}
	return movement, nil
}

func (s *service) ListMovements(ctx context.Context, params ListMovementsParams) (*MovementList, error) {
	if params.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if params.EventType != nil && !params.EventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	query := listMovementsParams{
		SellerID:  params.SellerID,
		ProductID: params.ProductID,
		EventType: params.EventType,
		Limit:     params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListMovements(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &MovementList{Items: rows, Cursor: cursor}, nil
}

// ClassifyStock derives the stock status of a quantity against a product's
// low stock threshold.
func ClassifyStock(quantity int, threshold *int) enums.StockStatus {
	limit := DefaultLowStockThreshold
	if threshold != nil && *threshold > 0 {
		limit = *threshold
	}
	switch {
	case quantity <= 0:
		return enums.StockStatusOutOfStock
	case quantity <= limit:
		return enums.StockStatusLowStock
	default:
		return enums.StockStatusInStock
	}
}
