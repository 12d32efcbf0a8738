package cart

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

func decimalFromString(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal: %v", err)
	}
	return d
}

type fakeRepository struct {
	listByOwnerFn   func(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error)
	findByIDFn      func(ctx context.Context, id uuid.UUID) (*models.CartItem, error)
	findByOwnerFn   func(ctx context.Context, ownerID, productID uuid.UUID) (*models.CartItem, error)
	createFn        func(ctx context.Context, item *models.CartItem) error
	updateQtyFn     func(ctx context.Context, id uuid.UUID, quantity int) error
	incrementFn     func(ctx context.Context, id uuid.UUID, delta int) error
	deleteFn        func(ctx context.Context, id uuid.UUID) error
	deleteByOwnerFn func(ctx context.Context, ownerID uuid.UUID) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error) {
	if f.listByOwnerFn != nil {
		return f.listByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByOwnerAndProduct(ctx context.Context, ownerID, productID uuid.UUID) (*models.CartItem, error) {
	if f.findByOwnerFn != nil {
		return f.findByOwnerFn(ctx, ownerID, productID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) Create(ctx context.Context, item *models.CartItem) error {
	if f.createFn != nil {
		return f.createFn(ctx, item)
	}
	return nil
}

func (f *fakeRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	if f.updateQtyFn != nil {
		return f.updateQtyFn(ctx, id, quantity)
	}
	return nil
}

func (f *fakeRepository) IncrementQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	if f.incrementFn != nil {
		return f.incrementFn(ctx, id, delta)
	}
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) error {
	if f.deleteByOwnerFn != nil {
		return f.deleteByOwnerFn(ctx, ownerID)
	}
	return nil
}

type fakeProductLoader struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProductLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := f.products[id]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductLoader) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if product, ok := f.products[id]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

func newCartProduct(sellerID uuid.UUID, quantity int) *models.Product {
	return &models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		Name:     "Crate of Fasteners",
		Quantity: quantity,
		Status:   enums.ProductStatusActive,
	}
}

func TestService_AddItemCreates(t *testing.T) {
	buyerBusiness := uuid.New()
	product := newCartProduct(uuid.New(), 10)
	loader := &fakeProductLoader{products: map[uuid.UUID]*models.Product{product.ID: product}}

	var created *models.CartItem
	repo := &fakeRepository{
		createFn: func(ctx context.Context, item *models.CartItem) error {
			created = item
			return nil
		},
	}
	svc, err := NewService(repo, loader)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	owner := uuid.New()
	item, err := svc.AddItem(context.Background(), AddItemInput{
		OwnerID:    owner,
		BusinessID: buyerBusiness,
		ProductID:  product.ID,
		Quantity:   3,
	})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if created == nil || created.OwnerID != owner || created.Quantity != 3 {
		t.Fatalf("unexpected created item: %+v", created)
	}
	if item != created {
		t.Fatal("service should return created item")
	}
}

func TestService_AddItemSumsExisting(t *testing.T) {
	buyerBusiness := uuid.New()
	product := newCartProduct(uuid.New(), 10)
	loader := &fakeProductLoader{products: map[uuid.UUID]*models.Product{product.ID: product}}

	owner := uuid.New()
	existing := &models.CartItem{ID: uuid.New(), OwnerID: owner, ProductID: product.ID, Quantity: 4}

	var incremented int
	repo := &fakeRepository{
		findByOwnerFn: func(ctx context.Context, ownerID, productID uuid.UUID) (*models.CartItem, error) {
			return existing, nil
		},
		incrementFn: func(ctx context.Context, id uuid.UUID, delta int) error {
			incremented = delta
			existing.Quantity += delta
			return nil
		},
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
			return existing, nil
		},
		createFn: func(ctx context.Context, item *models.CartItem) error {
			t.Fatal("must not create when a row already exists")
			return nil
		},
	}
	svc, err := NewService(repo, loader)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	item, err := svc.AddItem(context.Background(), AddItemInput{
		OwnerID:    owner,
		BusinessID: buyerBusiness,
		ProductID:  product.ID,
		Quantity:   2,
	})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if incremented != 2 || item.Quantity != 6 {
		t.Fatalf("expected increment of 2 to quantity 6, got %d / %+v", incremented, item)
	}
}

func TestService_AddItemRejections(t *testing.T) {
	sellerBusiness := uuid.New()
	active := newCartProduct(sellerBusiness, 5)
	inactive := newCartProduct(uuid.New(), 5)
	inactive.Status = enums.ProductStatusInactive
	loader := &fakeProductLoader{products: map[uuid.UUID]*models.Product{
		active.ID:   active,
		inactive.ID: inactive,
	}}
	svc, err := NewService(&fakeRepository{}, loader)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input AddItemInput
		code  pkgerrors.Code
	}{
		{
			name:  "quantity below one",
			input: AddItemInput{OwnerID: uuid.New(), BusinessID: uuid.New(), ProductID: active.ID, Quantity: 0},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "unknown product",
			input: AddItemInput{OwnerID: uuid.New(), BusinessID: uuid.New(), ProductID: uuid.New(), Quantity: 1},
			code:  pkgerrors.CodeNotFound,
		},
		{
			name:  "own product",
			input: AddItemInput{OwnerID: uuid.New(), BusinessID: sellerBusiness, ProductID: active.ID, Quantity: 1},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "inactive product",
			input: AddItemInput{OwnerID: uuid.New(), BusinessID: uuid.New(), ProductID: inactive.ID, Quantity: 1},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "insufficient stock",
			input: AddItemInput{OwnerID: uuid.New(), BusinessID: uuid.New(), ProductID: active.ID, Quantity: 6},
			code:  pkgerrors.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddItem(context.Background(), tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestService_UpdateItemDeletesOnZero(t *testing.T) {
	owner := uuid.New()
	item := &models.CartItem{ID: uuid.New(), OwnerID: owner, ProductID: uuid.New(), Quantity: 2}

	deleted := false
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
			return item, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			deleted = true
			return nil
		},
	}
	svc, err := NewService(repo, &fakeProductLoader{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	got, err := svc.UpdateItem(context.Background(), UpdateItemInput{OwnerID: owner, ItemID: item.ID, Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateItem error: %v", err)
	}
	if !deleted || got != nil {
		t.Fatalf("expected deletion with nil result, got %+v", got)
	}
}

func TestService_UpdateItemOwnership(t *testing.T) {
	item := &models.CartItem{ID: uuid.New(), OwnerID: uuid.New(), ProductID: uuid.New(), Quantity: 2}
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
			return item, nil
		},
	}
	svc, err := NewService(repo, &fakeProductLoader{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.UpdateItem(context.Background(), UpdateItemInput{OwnerID: uuid.New(), ItemID: item.ID, Quantity: 5})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	err = svc.RemoveItem(context.Background(), uuid.New(), item.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_GetBuildsView(t *testing.T) {
	owner := uuid.New()
	product := newCartProduct(uuid.New(), 10)
	product.Price = decimalFromString(t, "12.50")
	loader := &fakeProductLoader{products: map[uuid.UUID]*models.Product{product.ID: product}}

	orphanID := uuid.New()
	repo := &fakeRepository{
		listByOwnerFn: func(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error) {
			return []models.CartItem{
				{ID: uuid.New(), OwnerID: owner, ProductID: product.ID, Quantity: 2},
				{ID: uuid.New(), OwnerID: owner, ProductID: orphanID, Quantity: 1},
			}, nil
		},
	}
	svc, err := NewService(repo, loader)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	view, err := svc.Get(context.Background(), owner)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(view.Items))
	}
	if view.Items[0].LineTotal.String() != "25" && view.Items[0].LineTotal.String() != "25.00" {
		t.Fatalf("unexpected line total: %s", view.Items[0].LineTotal)
	}
	if !view.Items[1].Unavailable {
		t.Fatal("expected orphaned item to be flagged unavailable")
	}
	if !view.Subtotal.Equal(view.Items[0].LineTotal) {
		t.Fatalf("subtotal should exclude unpriced items, got %s", view.Subtotal)
	}
}
