package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/internal/products"
	dbpkg "github.com/obinnaeke/tradelane-backend/pkg/db"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes buyer cart operations.
type Service interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*models.CartItem, error)
	RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) error
	Clear(ctx context.Context, ownerID uuid.UUID) error
}

type service struct {
	repo     Repository
	products productLoader
}

// AddItemInput captures a cart add. BusinessID is the buyer's business and
// drives the own-product rejection.
type AddItemInput struct {
	OwnerID    uuid.UUID
	BusinessID uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
}

// UpdateItemInput sets an absolute quantity on an owned cart item.
type UpdateItemInput struct {
	OwnerID  uuid.UUID
	ItemID   uuid.UUID
	Quantity int
}

// CartView is the cart joined against live catalog rows.
type CartView struct {
	Items    []CartItemView  `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartItemView is one cart line priced from the live product.
type CartItemView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    uuid.UUID       `json:"seller_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Unavailable bool            `json:"unavailable"`
}

// NewService wires a cart service with the required dependencies.
func NewService(repo Repository, products productLoader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product loader required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) Get(ctx context.Context, ownerID uuid.UUID) (*CartView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]models.Product, len(catalog))
	for _, product := range catalog {
		byID[product.ID] = product
	}

	view := &CartView{Items: make([]CartItemView, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		line := CartItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: decimal.Zero,
			LineTotal: decimal.Zero,
		}
		product, ok := byID[item.ProductID]
		if !ok {
			line.Unavailable = true
			view.Items = append(view.Items, line)
			continue
		}
		line.ProductName = product.Name
		line.SellerID = product.SellerID
		line.UnitPrice = product.Price
		line.LineTotal = product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		line.Unavailable = product.Status != enums.ProductStatusActive || product.Quantity < item.Quantity
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
		view.Items = append(view.Items, line)
	}
	return view, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.CartItem, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	existing, err := s.findExisting(ctx, input.OwnerID, input.ProductID)
	if err != nil {
		return nil, err
	}

	requested := input.Quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if err := products.EnsurePurchasable(products.PurchasabilityInput{
		Product:  product,
		BuyerID:  input.BusinessID,
		Quantity: requested,
	}); err != nil {
		return nil, err
	}

	if existing != nil {
		return s.increment(ctx, existing.ID, input.Quantity)
	}

	item := &models.CartItem{
		OwnerID:   input.OwnerID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		// A concurrent add for the same product landed first; fold into it.
		if dbpkg.IsUniqueViolation(err, "idx_cart_items_owner_product") {
			winner, ferr := s.findExisting(ctx, input.OwnerID, input.ProductID)
			if ferr != nil {
				return nil, ferr
			}
			if winner != nil {
				return s.increment(ctx, winner.ID, input.Quantity)
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
	}
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*models.CartItem, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	item, err := s.repo.FindByID(ctx, input.ItemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.OwnerID != input.OwnerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item does not belong to caller")
	}

	if input.Quantity <= 0 {
		if err := s.repo.Delete(ctx, item.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return nil, nil
	}

	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := products.EnsurePurchasable(products.PurchasabilityInput{
		Product:  product,
		Quantity: input.Quantity,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateQuantity(ctx, item.ID, input.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	item.Quantity = input.Quantity
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.OwnerID != ownerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cart item does not belong to caller")
	}
	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if err := s.repo.DeleteByOwner(ctx, ownerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// findExisting treats not-found as nil so callers can branch on presence.
func (s *service) findExisting(ctx context.Context, ownerID, productID uuid.UUID) (*models.CartItem, error) {
	existing, err := s.repo.FindByOwnerAndProduct(ctx, ownerID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return existing, nil
}

func (s *service) increment(ctx context.Context, itemID uuid.UUID, delta int) (*models.CartItem, error) {
	if err := s.repo.IncrementQuantity(ctx, itemID, delta); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart item")
	}
	return item, nil
}
