package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/internal/cart"
	"github.com/obinnaeke/tradelane-backend/internal/inventory"
	"github.com/obinnaeke/tradelane-backend/internal/orders"
	"github.com/obinnaeke/tradelane-backend/internal/products"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox/payloads"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubCartRepo struct {
	items        []models.CartItem
	clearedOwner *uuid.UUID
	listErr      error
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *stubCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindByOwnerAndProduct(ctx context.Context, ownerID, productID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) Create(ctx context.Context, item *models.CartItem) error { return nil }

func (s *stubCartRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartRepo) IncrementQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	return nil
}

func (s *stubCartRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubCartRepo) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) error {
	s.clearedOwner = &ownerID
	return nil
}

type stubOrdersRepository struct {
	orders []models.Order
	items  []models.OrderItem
}

func (s *stubOrdersRepository) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepository) Create(ctx context.Context, order *models.Order) error {
	s.orders = append(s.orders, *order)
	return nil
}

func (s *stubOrdersRepository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	s.items = append(s.items, items...)
	return nil
}

func (s *stubOrdersRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepository) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params orders.ListFilter) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubOrdersRepository) ListForSeller(ctx context.Context, sellerID uuid.UUID, params orders.ListFilter) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubOrdersRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return nil
}

func (s *stubOrdersRepository) CountForBuyerSince(ctx context.Context, buyerID uuid.UUID, since time.Time) (int64, error) {
	return 0, nil
}

type stubProductRepo struct {
	products map[uuid.UUID]models.Product
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := s.products[id]; ok {
		return &product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProductRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	found := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			found = append(found, product)
		}
	}
	return found, nil
}

func (s *stubProductRepo) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubLedger struct {
	adjustments []inventory.AdjustInput
	failAfter   int
}

func (s *stubLedger) AdjustTx(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*models.InventoryTransaction, error) {
	if s.failAfter > 0 && len(s.adjustments)+1 > s.failAfter {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock")
	}
	s.adjustments = append(s.adjustments, input)
	return &models.InventoryTransaction{ProductID: input.ProductID}, nil
}

type stubLimits struct {
	err    error
	called bool
}

func (s *stubLimits) Enforce(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) error {
	s.called = true
	return s.err
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type checkoutFixture struct {
	svc      Service
	cartRepo *stubCartRepo
	orders   *stubOrdersRepository
	ledger   *stubLedger
	limits   *stubLimits
	outbox   *stubOutboxPublisher
}

func newCheckoutFixture(t *testing.T, cartRepo *stubCartRepo, catalog map[uuid.UUID]models.Product) *checkoutFixture {
	t.Helper()

	fixture := &checkoutFixture{
		cartRepo: cartRepo,
		orders:   &stubOrdersRepository{},
		ledger:   &stubLedger{},
		limits:   &stubLimits{},
		outbox:   &stubOutboxPublisher{},
	}
	svc, err := NewService(ServiceParams{
		Tx:       stubTxRunner{},
		Cart:     cartRepo,
		Orders:   fixture.orders,
		Products: &stubProductRepo{products: catalog},
		Ledger:   fixture.ledger,
		Limits:   fixture.limits,
		Outbox:   fixture.outbox,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("decimal %q: %v", value, err)
	}
	return d
}

func TestCheckoutSplitsCartBySeller(t *testing.T) {
	sellerA := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	sellerB := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	p1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	p2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	p3 := uuid.MustParse("00000000-0000-0000-0000-000000000003")
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}

	catalog := map[uuid.UUID]models.Product{
		p1: {ID: p1, SellerID: sellerA, Name: "Cocoa 50kg", Price: mustDecimal(t, "100.00"), Quantity: 10, Status: enums.ProductStatusActive},
		p2: {ID: p2, SellerID: sellerB, Name: "Shea butter", Price: mustDecimal(t, "50.00"), Quantity: 10, Status: enums.ProductStatusActive},
		p3: {ID: p3, SellerID: sellerA, Name: "Cashew nuts", Price: mustDecimal(t, "75.00"), Quantity: 10, Status: enums.ProductStatusActive},
	}
	cartRepo := &stubCartRepo{items: []models.CartItem{
		{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: p1, Quantity: 2},
		{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: p2, Quantity: 1},
		{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: p3, Quantity: 3},
	}}
	fixture := newCheckoutFixture(t, cartRepo, catalog)

	created, err := fixture.svc.Checkout(context.Background(), buyer)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(created))
	}

	bySeller := map[uuid.UUID]models.Order{}
	for _, order := range created {
		bySeller[order.SellerID] = order
	}
	orderA, ok := bySeller[sellerA]
	if !ok {
		t.Fatal("missing seller A order")
	}
	orderB, ok := bySeller[sellerB]
	if !ok {
		t.Fatal("missing seller B order")
	}

	if !orderA.Amount.Equal(mustDecimal(t, "425.00")) {
		t.Fatalf("seller A amount = %s, want 425", orderA.Amount)
	}
	if !orderB.Amount.Equal(mustDecimal(t, "50.00")) {
		t.Fatalf("seller B amount = %s, want 50", orderB.Amount)
	}
	for _, order := range created {
		if order.Status != enums.OrderStatusPending {
			t.Fatalf("expected pending, got %s", order.Status)
		}
		if order.PaymentID != nil {
			t.Fatal("direct checkout should not link a payment")
		}
		if order.BuyerID != buyer.BusinessID {
			t.Fatalf("order buyer = %s, want %s", order.BuyerID, buyer.BusinessID)
		}
	}

	// Seller A's item list preserves cart order: p1 then p3.
	if len(orderA.Items) != 2 || orderA.Items[0].ProductID != p1 || orderA.Items[1].ProductID != p3 {
		t.Fatalf("seller A items out of order: %+v", orderA.Items)
	}
	if orderA.Title != "Cocoa 50kg +1 more" {
		t.Fatalf("unexpected title %q", orderA.Title)
	}
	if orderB.Title != "Shea butter" {
		t.Fatalf("unexpected title %q", orderB.Title)
	}

	// Ledger movements run against every line, ordered by product id.
	if len(fixture.ledger.adjustments) != 3 {
		t.Fatalf("expected 3 adjustments, got %d", len(fixture.ledger.adjustments))
	}
	wantDeltas := map[uuid.UUID]int{p1: -2, p2: -1, p3: -3}
	for i, adj := range fixture.ledger.adjustments {
		if adj.EventType != enums.LedgerEventTypeSale {
			t.Fatalf("adjustment %d event type = %s", i, adj.EventType)
		}
		if adj.Delta != wantDeltas[adj.ProductID] {
			t.Fatalf("adjustment for %s delta = %d, want %d", adj.ProductID, adj.Delta, wantDeltas[adj.ProductID])
		}
		if adj.ActorID != buyer.SubjectID {
			t.Fatalf("adjustment actor = %s", adj.ActorID)
		}
		if adj.Reference == nil {
			t.Fatal("adjustment missing order reference")
		}
		if i > 0 && fixture.ledger.adjustments[i-1].ProductID.String() > adj.ProductID.String() {
			t.Fatal("adjustments not in product id order")
		}
	}
	refA := orderA.ID.String()
	for _, adj := range fixture.ledger.adjustments {
		if adj.ProductID == p1 && *adj.Reference != refA {
			t.Fatalf("p1 reference = %s, want %s", *adj.Reference, refA)
		}
	}

	if cartRepo.clearedOwner == nil || *cartRepo.clearedOwner != buyer.SubjectID {
		t.Fatal("cart was not cleared")
	}

	if len(fixture.outbox.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(fixture.outbox.events))
	}
	event := fixture.outbox.events[0]
	if event.EventType != enums.EventOrderCreated {
		t.Fatalf("event type = %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", event.Data)
	}
	if len(payload.OrderIDs) != 2 {
		t.Fatalf("payload order ids = %d", len(payload.OrderIDs))
	}
	if !payload.Total.Equal(mustDecimal(t, "475.00")) {
		t.Fatalf("payload total = %s, want 475", payload.Total)
	}
	if payload.PaymentID != nil {
		t.Fatal("direct checkout payload should not carry a payment id")
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}
	fixture := newCheckoutFixture(t, &stubCartRepo{}, nil)

	_, err := fixture.svc.Checkout(context.Background(), buyer)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckoutEnforcesOrdersLimit(t *testing.T) {
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}
	cartRepo := &stubCartRepo{listErr: pkgerrors.New(pkgerrors.CodeInternal, "cart should not be read")}
	fixture := newCheckoutFixture(t, cartRepo, nil)
	fixture.limits.err = pkgerrors.New(pkgerrors.CodePlanLimit, "plan limit exceeded")

	_, err := fixture.svc.Checkout(context.Background(), buyer)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePlanLimit {
		t.Fatalf("expected plan limit error, got %v", err)
	}
	if !fixture.limits.called {
		t.Fatal("limit enforcement skipped")
	}
}

func TestCheckoutRejectsUnavailableProducts(t *testing.T) {
	sellerID := uuid.New()
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}

	cases := []struct {
		name    string
		catalog map[uuid.UUID]models.Product
		item    models.CartItem
	}{
		{
			name:    "product vanished from catalog",
			catalog: map[uuid.UUID]models.Product{},
			item:    models.CartItem{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1},
		},
		{
			name: "inactive product",
			catalog: map[uuid.UUID]models.Product{
				uuid.MustParse("00000000-0000-0000-0000-000000000010"): {
					ID: uuid.MustParse("00000000-0000-0000-0000-000000000010"), SellerID: sellerID,
					Price: decimal.New(10, 0), Quantity: 5, Status: enums.ProductStatusInactive,
				},
			},
			item: models.CartItem{ID: uuid.New(), ProductID: uuid.MustParse("00000000-0000-0000-0000-000000000010"), Quantity: 1},
		},
		{
			name: "insufficient stock",
			catalog: map[uuid.UUID]models.Product{
				uuid.MustParse("00000000-0000-0000-0000-000000000011"): {
					ID: uuid.MustParse("00000000-0000-0000-0000-000000000011"), SellerID: sellerID,
					Price: decimal.New(10, 0), Quantity: 1, Status: enums.ProductStatusActive,
				},
			},
			item: models.CartItem{ID: uuid.New(), ProductID: uuid.MustParse("00000000-0000-0000-0000-000000000011"), Quantity: 3},
		},
		{
			name: "own product",
			catalog: map[uuid.UUID]models.Product{
				uuid.MustParse("00000000-0000-0000-0000-000000000012"): {
					ID: uuid.MustParse("00000000-0000-0000-0000-000000000012"), SellerID: buyer.BusinessID,
					Price: decimal.New(10, 0), Quantity: 5, Status: enums.ProductStatusActive,
				},
			},
			item: models.CartItem{ID: uuid.New(), ProductID: uuid.MustParse("00000000-0000-0000-0000-000000000012"), Quantity: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cartRepo := &stubCartRepo{items: []models.CartItem{tc.item}}
			fixture := newCheckoutFixture(t, cartRepo, tc.catalog)

			_, err := fixture.svc.Checkout(context.Background(), buyer)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(fixture.orders.orders) != 0 && cartRepo.clearedOwner != nil {
				t.Fatal("failed checkout must not clear the cart")
			}
		})
	}
}

func TestCheckoutAbortsWhenLedgerRejects(t *testing.T) {
	sellerID := uuid.New()
	p1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	p2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}

	catalog := map[uuid.UUID]models.Product{
		p1: {ID: p1, SellerID: sellerID, Name: "Cocoa", Price: decimal.New(100, 0), Quantity: 10, Status: enums.ProductStatusActive},
		p2: {ID: p2, SellerID: sellerID, Name: "Shea", Price: decimal.New(50, 0), Quantity: 10, Status: enums.ProductStatusActive},
	}
	cartRepo := &stubCartRepo{items: []models.CartItem{
		{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: p1, Quantity: 1},
		{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: p2, Quantity: 1},
	}}
	fixture := newCheckoutFixture(t, cartRepo, catalog)
	fixture.ledger.failAfter = 1

	_, err := fixture.svc.Checkout(context.Background(), buyer)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if cartRepo.clearedOwner != nil {
		t.Fatal("cart must not be cleared when a ledger write fails")
	}
	if len(fixture.outbox.events) != 0 {
		t.Fatal("no event should be emitted when the transaction fails")
	}
}

func TestFulfillFromSnapshotUsesSnapshotPrices(t *testing.T) {
	sellerID := uuid.New()
	productID := uuid.New()
	buyerBusinessID := uuid.New()
	payment := &models.Payment{ID: uuid.New(), OwnerID: uuid.New(), Status: enums.PaymentStatusSuccess}

	// Live price drifted up after the snapshot was taken.
	catalog := map[uuid.UUID]models.Product{
		productID: {ID: productID, SellerID: sellerID, Name: "Cocoa", Price: mustDecimal(t, "999.00"), Quantity: 10, Status: enums.ProductStatusActive},
	}
	snapshot := CartSnapshot{
		BuyerBusinessID: buyerBusinessID,
		Items: []SnapshotItem{
			{ProductID: productID, ProductName: "Cocoa", SellerID: sellerID, Quantity: 2, UnitPrice: mustDecimal(t, "100.00")},
		},
	}
	cartRepo := &stubCartRepo{}
	fixture := newCheckoutFixture(t, cartRepo, catalog)

	created, err := fixture.svc.FulfillFromSnapshot(context.Background(), &gorm.DB{}, payment, snapshot)
	if err != nil {
		t.Fatalf("FulfillFromSnapshot: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 order, got %d", len(created))
	}
	order := created[0]
	if !order.Amount.Equal(mustDecimal(t, "200.00")) {
		t.Fatalf("order amount = %s, want snapshot price total 200", order.Amount)
	}
	if order.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", order.Status)
	}
	if order.PaymentID == nil || *order.PaymentID != payment.ID {
		t.Fatal("order not linked to payment")
	}
	if order.BuyerID != buyerBusinessID {
		t.Fatalf("order buyer = %s, want %s", order.BuyerID, buyerBusinessID)
	}
	if cartRepo.clearedOwner == nil || *cartRepo.clearedOwner != payment.OwnerID {
		t.Fatal("live cart not cleared for payment owner")
	}
	payload := fixture.outbox.events[0].Data.(payloads.OrderCreatedEvent)
	if payload.PaymentID == nil || *payload.PaymentID != payment.ID {
		t.Fatal("payload missing payment id")
	}
}

func TestFulfillFromSnapshotValidation(t *testing.T) {
	fixture := newCheckoutFixture(t, &stubCartRepo{}, nil)
	payment := &models.Payment{ID: uuid.New(), OwnerID: uuid.New()}

	t.Run("empty snapshot", func(t *testing.T) {
		_, err := fixture.svc.FulfillFromSnapshot(context.Background(), &gorm.DB{}, payment, CartSnapshot{BuyerBusinessID: uuid.New()})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missing buyer business", func(t *testing.T) {
		snapshot := CartSnapshot{Items: []SnapshotItem{{ProductID: uuid.New(), Quantity: 1}}}
		_, err := fixture.svc.FulfillFromSnapshot(context.Background(), &gorm.DB{}, payment, snapshot)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("stock drained after snapshot", func(t *testing.T) {
		sellerID := uuid.New()
		productID := uuid.New()
		catalog := map[uuid.UUID]models.Product{
			productID: {ID: productID, SellerID: sellerID, Price: decimal.New(10, 0), Quantity: 1, Status: enums.ProductStatusActive},
		}
		drained := newCheckoutFixture(t, &stubCartRepo{}, catalog)
		snapshot := CartSnapshot{
			BuyerBusinessID: uuid.New(),
			Items:           []SnapshotItem{{ProductID: productID, SellerID: sellerID, Quantity: 5, UnitPrice: decimal.New(10, 0)}},
		}
		_, err := drained.svc.FulfillFromSnapshot(context.Background(), &gorm.DB{}, payment, snapshot)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestSnapshotFreezesLivePrices(t *testing.T) {
	sellerID := uuid.New()
	productID := uuid.New()
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}

	catalog := map[uuid.UUID]models.Product{
		productID: {ID: productID, SellerID: sellerID, Name: "Palm oil 25L", Price: mustDecimal(t, "80.00"), Quantity: 6, Status: enums.ProductStatusActive},
	}
	cartRepo := &stubCartRepo{items: []models.CartItem{
		{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: productID, Quantity: 3},
	}}
	fixture := newCheckoutFixture(t, cartRepo, catalog)

	snapshot, err := fixture.svc.Snapshot(context.Background(), buyer)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.BuyerBusinessID != buyer.BusinessID {
		t.Fatalf("snapshot buyer = %s, want %s", snapshot.BuyerBusinessID, buyer.BusinessID)
	}
	if len(snapshot.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(snapshot.Items))
	}
	item := snapshot.Items[0]
	if item.ProductID != productID || item.SellerID != sellerID || item.ProductName != "Palm oil 25L" {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Quantity != 3 || !item.UnitPrice.Equal(mustDecimal(t, "80.00")) {
		t.Fatalf("unexpected item %+v", item)
	}
	if !snapshot.Subtotal().Equal(mustDecimal(t, "240.00")) {
		t.Fatalf("subtotal = %s, want 240", snapshot.Subtotal())
	}
	if cartRepo.clearedOwner != nil {
		t.Fatal("snapshot must leave the cart in place")
	}
	if len(fixture.ledger.adjustments) != 0 {
		t.Fatal("snapshot must not move stock")
	}
	if len(fixture.orders.orders) != 0 {
		t.Fatal("snapshot must not create orders")
	}
}

func TestSnapshotValidation(t *testing.T) {
	buyer := Buyer{SubjectID: uuid.New(), BusinessID: uuid.New()}

	t.Run("empty cart", func(t *testing.T) {
		fixture := newCheckoutFixture(t, &stubCartRepo{}, nil)
		_, err := fixture.svc.Snapshot(context.Background(), buyer)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("own product", func(t *testing.T) {
		productID := uuid.New()
		catalog := map[uuid.UUID]models.Product{
			productID: {ID: productID, SellerID: buyer.BusinessID, Price: decimal.New(10, 0), Quantity: 5, Status: enums.ProductStatusActive},
		}
		cartRepo := &stubCartRepo{items: []models.CartItem{
			{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: productID, Quantity: 1},
		}}
		fixture := newCheckoutFixture(t, cartRepo, catalog)
		_, err := fixture.svc.Snapshot(context.Background(), buyer)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("insufficient stock", func(t *testing.T) {
		productID := uuid.New()
		catalog := map[uuid.UUID]models.Product{
			productID: {ID: productID, SellerID: uuid.New(), Price: decimal.New(10, 0), Quantity: 1, Status: enums.ProductStatusActive},
		}
		cartRepo := &stubCartRepo{items: []models.CartItem{
			{ID: uuid.New(), OwnerID: buyer.SubjectID, ProductID: productID, Quantity: 4},
		}}
		fixture := newCheckoutFixture(t, cartRepo, catalog)
		_, err := fixture.svc.Snapshot(context.Background(), buyer)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
