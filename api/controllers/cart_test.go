package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/obinnaeke/tradelane-backend/internal/cart"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

type stubCartService struct {
	view         *cartsvc.CartView
	item         *models.CartItem
	err          error
	lastAdd      cartsvc.AddItemInput
	lastUpdate   cartsvc.UpdateItemInput
	removedOwner uuid.UUID
	removedItem  uuid.UUID
}

func (s *stubCartService) Get(ctx context.Context, ownerID uuid.UUID) (*cartsvc.CartView, error) {
	return s.view, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, input cartsvc.AddItemInput) (*models.CartItem, error) {
	s.lastAdd = input
	return s.item, s.err
}

func (s *stubCartService) UpdateItem(ctx context.Context, input cartsvc.UpdateItemInput) (*models.CartItem, error) {
	s.lastUpdate = input
	return s.item, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) error {
	s.removedOwner = ownerID
	s.removedItem = itemID
	return s.err
}

func (s *stubCartService) Clear(ctx context.Context, ownerID uuid.UUID) error {
	return s.err
}

func TestCartGetSuccess(t *testing.T) {
	identity := newTestIdentity(enums.UserRoleBuyer)
	view := &cartsvc.CartView{
		Items:    []cartsvc.CartItemView{{ID: uuid.New(), Quantity: 2}},
		Subtotal: decimal.NewFromInt(40),
	}
	handler := CartGet(&stubCartService{view: view}, nil)

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/v1/cart", nil), identity)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.CartView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one item got %d", len(envelope.Data.Items))
	}
}

func TestCartGetRequiresIdentity(t *testing.T) {
	handler := CartGet(&stubCartService{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemPassesBuyerScope(t *testing.T) {
	identity := newTestIdentity(enums.UserRoleBuyer)
	svc := &stubCartService{item: &models.CartItem{ID: uuid.New()}}
	handler := CartAddItem(svc, nil)

	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":3}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/v1/cart/items", strings.NewReader(body)), identity)
	resp := doJSON(handler, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastAdd.OwnerID != identity.userID {
		t.Fatalf("expected owner %s got %s", identity.userID, svc.lastAdd.OwnerID)
	}
	if svc.lastAdd.BusinessID != identity.businessID {
		t.Fatalf("expected business %s got %s", identity.businessID, svc.lastAdd.BusinessID)
	}
	if svc.lastAdd.ProductID != productID || svc.lastAdd.Quantity != 3 {
		t.Fatalf("unexpected add input: %+v", svc.lastAdd)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	identity := newTestIdentity(enums.UserRoleBuyer)
	handler := CartAddItem(&stubCartService{}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/v1/cart/items", strings.NewReader(body)), identity)
	resp := doJSON(handler, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity got %d", resp.Code)
	}
}

func TestCartUpdateItemReportsRemoval(t *testing.T) {
	identity := newTestIdentity(enums.UserRoleBuyer)
	svc := &stubCartService{item: nil}
	handler := CartUpdateItem(svc, nil)

	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/v1/cart/items/"+itemID.String(), strings.NewReader(`{"quantity":-1}`))
	req = authedRequest(req, identity)
	req = withURLParam(req, "itemID", itemID.String())
	resp := doJSON(handler, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data["removed"] {
		t.Fatalf("expected removed flag, got %+v", envelope.Data)
	}
	if svc.lastUpdate.ItemID != itemID {
		t.Fatalf("expected item %s got %s", itemID, svc.lastUpdate.ItemID)
	}
}

func TestCartRemoveItemScopesToOwner(t *testing.T) {
	identity := newTestIdentity(enums.UserRoleBuyer)
	svc := &stubCartService{}
	handler := CartRemoveItem(svc, nil)

	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/v1/cart/items/"+itemID.String(), nil)
	req = authedRequest(req, identity)
	req = withURLParam(req, "itemID", itemID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.removedOwner != identity.userID || svc.removedItem != itemID {
		t.Fatalf("unexpected removal scope: owner=%s item=%s", svc.removedOwner, svc.removedItem)
	}
}

func TestCartAddItemNotFoundPropagates(t *testing.T) {
	identity := newTestIdentity(enums.UserRoleBuyer)
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":1}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/v1/cart/items", strings.NewReader(body)), identity)
	resp := doJSON(handler, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
