package checkout

import (
	"context"
	"fmt"
	"sort"

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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inventoryAdjuster interface {
	AdjustTx(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*models.InventoryTransaction, error)
}

type limitEnforcer interface {
	Enforce(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a cart into per-seller orders.
type Service interface {
	Checkout(ctx context.Context, buyer Buyer) ([]models.Order, error)
	Snapshot(ctx context.Context, buyer Buyer) (*CartSnapshot, error)
	FulfillFromSnapshot(ctx context.Context, tx *gorm.DB, payment *models.Payment, snapshot CartSnapshot) ([]models.Order, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Tx       txRunner
	Cart     cart.Repository
	Orders   orders.Repository
	Products products.Repository
	Ledger   inventoryAdjuster
	Limits   limitEnforcer
	Outbox   outboxPublisher
}

type service struct {
	tx           txRunner
	cartRepo     cart.Repository
	ordersRepo   orders.Repository
	productsRepo products.Repository
	ledger       inventoryAdjuster
	limits       limitEnforcer
	outbox       outboxPublisher
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory adjuster required")
	}
	if params.Limits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "limit enforcer required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{
		tx:           params.Tx,
		cartRepo:     params.Cart,
		ordersRepo:   params.Orders,
		productsRepo: params.Products,
		ledger:       params.Ledger,
		limits:       params.Limits,
		outbox:       params.Outbox,
	}, nil
}

// line is one validated item headed into an order.
type line struct {
	ProductID   uuid.UUID
	ProductName string
	SellerID    uuid.UUID
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Checkout converts the buyer's live cart into one pending order per seller,
// decrementing stock through the ledger. All-or-nothing across seller groups.
func (s *service) Checkout(ctx context.Context, buyer Buyer) ([]models.Order, error) {
	if buyer.SubjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id required")
	}
	if buyer.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	if err := s.limits.Enforce(ctx, buyer.BusinessID, enums.PlanFeatureOrders); err != nil {
		return nil, err
	}

	var created []models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.cartRepo.WithTx(tx).ListByOwner(ctx, buyer.SubjectID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		catalog, err := s.loadCatalog(ctx, tx, cartProductIDs(items))
		if err != nil {
			return err
		}

		// Live prices for the direct path; the catalog read doubles as the
		// availability check.
		lines := make([]line, 0, len(items))
		for _, item := range items {
			product, ok := catalog[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "product unavailable")
			}
			if err := products.EnsurePurchasable(products.PurchasabilityInput{
				Product:  &product,
				BuyerID:  buyer.BusinessID,
				Quantity: item.Quantity,
			}); err != nil {
				return err
			}
			lines = append(lines, line{
				ProductID:   product.ID,
				ProductName: product.Name,
				SellerID:    product.SellerID,
				Quantity:    item.Quantity,
				UnitPrice:   product.Price,
			})
		}

		created, err = s.createOrders(ctx, tx, buyer.BusinessID, buyer.SubjectID, nil, enums.OrderStatusPending, lines)
		if err != nil {
			return err
		}
		if err := s.cartRepo.WithTx(tx).DeleteByOwner(ctx, buyer.SubjectID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Snapshot freezes the buyer's live cart for deferred fulfilment. Prices and
// seller attribution are captured as of now; stock is re-checked when the
// snapshot is fulfilled.
func (s *service) Snapshot(ctx context.Context, buyer Buyer) (*CartSnapshot, error) {
	if buyer.SubjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id required")
	}
	if buyer.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}

	items, err := s.cartRepo.ListByOwner(ctx, buyer.SubjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	catalog, err := s.loadCatalog(ctx, nil, cartProductIDs(items))
	if err != nil {
		return nil, err
	}

	snapshot := &CartSnapshot{
		BuyerBusinessID: buyer.BusinessID,
		Items:           make([]SnapshotItem, 0, len(items)),
	}
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product unavailable")
		}
		if err := products.EnsurePurchasable(products.PurchasabilityInput{
			Product:  &product,
			BuyerID:  buyer.BusinessID,
			Quantity: item.Quantity,
		}); err != nil {
			return nil, err
		}
		snapshot.Items = append(snapshot.Items, SnapshotItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			SellerID:    product.SellerID,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		})
	}
	return snapshot, nil
}

// FulfillFromSnapshot creates processing orders from a payment's frozen cart
// snapshot inside the caller's transaction. Prices come from the snapshot,
// stock from the live catalog.
func (s *service) FulfillFromSnapshot(ctx context.Context, tx *gorm.DB, payment *models.Payment, snapshot CartSnapshot) ([]models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment required")
	}
	if snapshot.BuyerBusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer business id required")
	}
	if len(snapshot.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lines := make([]line, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		lines = append(lines, line{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SellerID:    item.SellerID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	catalog, err := s.loadCatalog(ctx, tx, lineProductIDs(lines))
	if err != nil {
		return nil, err
	}
	for _, ln := range lines {
		product, ok := catalog[ln.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product unavailable")
		}
		if err := products.EnsurePurchasable(products.PurchasabilityInput{
			Product:  &product,
			BuyerID:  snapshot.BuyerBusinessID,
			Quantity: ln.Quantity,
		}); err != nil {
			return nil, err
		}
	}

	created, err := s.createOrders(ctx, tx, snapshot.BuyerBusinessID, payment.OwnerID, &payment.ID, enums.OrderStatusProcessing, lines)
	if err != nil {
		return nil, err
	}
	// The snapshot is authoritative, but the live cart still holds the
	// consumed rows; clear them so the buyer does not pay twice.
	if err := s.cartRepo.WithTx(tx).DeleteByOwner(ctx, payment.OwnerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return created, nil
}

// createOrders groups lines by seller, writes one order plus items per
// seller, records the ledger movements in a deterministic product order, and
// queues the order.created event.
func (s *service) createOrders(ctx context.Context, tx *gorm.DB, buyerBusinessID, actorID uuid.UUID, paymentID *uuid.UUID, status enums.OrderStatus, lines []line) ([]models.Order, error) {
	ordersRepo := s.ordersRepo.WithTx(tx)

	grouped := groupBySeller(lines)
	sellerIDs := sortedSellerIDs(grouped)

	type adjustment struct {
		productID uuid.UUID
		quantity  int
		orderID   uuid.UUID
	}

	created := make([]models.Order, 0, len(sellerIDs))
	orderIDs := make([]uuid.UUID, 0, len(sellerIDs))
	adjustments := make([]adjustment, 0, len(lines))
	total := decimal.Zero

	for _, sellerID := range sellerIDs {
		group := grouped[sellerID]
		amount := decimal.Zero
		for _, ln := range group {
			amount = amount.Add(ln.UnitPrice.Mul(decimal.NewFromInt(int64(ln.Quantity))))
		}

		order := &models.Order{
			ID:            uuid.New(),
			BuyerID:       buyerBusinessID,
			SellerID:      sellerID,
			PaymentID:     paymentID,
			Title:         orderTitle(group),
			CustomerLabel: customerLabel(buyerBusinessID),
			Amount:        amount,
			Status:        status,
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(group))
		for _, ln := range group {
			items = append(items, models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   ln.ProductID,
				ProductName: ln.ProductName,
				Quantity:    ln.Quantity,
				UnitPrice:   ln.UnitPrice,
			})
			adjustments = append(adjustments, adjustment{productID: ln.ProductID, quantity: ln.Quantity, orderID: order.ID})
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		created = append(created, *order)
		orderIDs = append(orderIDs, order.ID)
		total = total.Add(amount)
	}

	// Lock products in one global order so concurrent checkouts that share
	// products cannot deadlock.
	sort.Slice(adjustments, func(i, j int) bool {
		return adjustments[i].productID.String() < adjustments[j].productID.String()
	})
	for _, adj := range adjustments {
		reference := adj.orderID.String()
		if _, err := s.ledger.AdjustTx(ctx, tx, inventory.AdjustInput{
			ProductID: adj.productID,
			ActorID:   actorID,
			Delta:     -adj.quantity,
			EventType: enums.LedgerEventTypeSale,
			Reference: &reference,
		}); err != nil {
			return nil, err
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderIDs[0],
		Data: payloads.OrderCreatedEvent{
			PaymentID: paymentID,
			BuyerID:   buyerBusinessID,
			OrderIDs:  orderIDs,
			Total:     total,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
	}
	return created, nil
}

func (s *service) loadCatalog(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := s.productsRepo.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	catalog := make(map[uuid.UUID]models.Product, len(rows))
	for _, product := range rows {
		catalog[product.ID] = product
	}
	return catalog, nil
}

// groupBySeller partitions lines by seller, preserving each seller's item
// order.
func groupBySeller(lines []line) map[uuid.UUID][]line {
	grouped := make(map[uuid.UUID][]line)
	for _, ln := range lines {
		grouped[ln.SellerID] = append(grouped[ln.SellerID], ln)
	}
	return grouped
}

func sortedSellerIDs(grouped map[uuid.UUID][]line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func cartProductIDs(items []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func lineProductIDs(lines []line) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, ln := range lines {
		if _, ok := seen[ln.ProductID]; ok {
			continue
		}
		seen[ln.ProductID] = struct{}{}
		ids = append(ids, ln.ProductID)
	}
	return ids
}

func orderTitle(group []line) string {
	if len(group) == 1 {
		return group[0].ProductName
	}
	return fmt.Sprintf("%s +%d more", group[0].ProductName, len(group)-1)
}

func customerLabel(buyerBusinessID uuid.UUID) string {
	return "buyer-" + buyerBusinessID.String()[:8]
}
