package orders

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

// Actor identifies the caller of an order operation.
type Actor struct {
	UserID     uuid.UUID
	BusinessID uuid.UUID
	Role       enums.UserRole
}

// ListParams filters and paginates an order listing.
type ListParams struct {
	Status string
	Limit  int
	Cursor string
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Items  []models.Order
	Cursor string
}

// TransitionDetails describes a rejected status change.
type TransitionDetails struct {
	From enums.OrderStatus `json:"from"`
	To   enums.OrderStatus `json:"to"`
}

// Service exposes order reads and the seller status workflow.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	ListForBuyer(ctx context.Context, actor Actor, params ListParams) (*OrderList, error)
	ListForSeller(ctx context.Context, actor Actor, params ListParams) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

type service struct {
	repo Repository
}

// NewService builds the orders service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	}
	return &service{repo: repo}, nil
}

// allowedTransitions encodes the seller workflow. Terminal statuses have no
// outgoing edges.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusCompleted, enums.OrderStatusCancelled},
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}

	if actor.Role != enums.UserRoleAdmin &&
		order.BuyerID != actor.BusinessID &&
		order.SellerID != actor.BusinessID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this order")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, actor Actor, params ListParams) (*OrderList, error) {
	if actor.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	repoParams, err := buildListParams(params)
	if err != nil {
		return nil, err
	}

	items, next, err := s.repo.ListForBuyer(ctx, actor.BusinessID, repoParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list buyer orders")
	}
	return buildOrderList(items, next), nil
}

func (s *service) ListForSeller(ctx context.Context, actor Actor, params ListParams) (*OrderList, error) {
	if actor.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	repoParams, err := buildListParams(params)
	if err != nil {
		return nil, err
	}

	items, next, err := s.repo.ListForSeller(ctx, actor.BusinessID, repoParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list seller orders")
	}
	return buildOrderList(items, next), nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if actor.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}
	if order.SellerID != actor.BusinessID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can update this order")
	}

	if order.Status == status {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal status").
			WithDetails(TransitionDetails{From: order.Status, To: status})
	}
	if !transitionAllowed(order.Status, status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
			WithDetails(TransitionDetails{From: order.Status, To: status})
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	order.Status = status
	return order, nil
}

func buildListParams(params ListParams) (ListFilter, error) {
	repoParams := ListFilter{Limit: params.Limit}
	if params.Status != "" {
		status, err := enums.ParseOrderStatus(params.Status)
		if err != nil {
			return ListFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		repoParams.Status = &status
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ListFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	repoParams.Cursor = cursor
	return repoParams, nil
}

func buildOrderList(items []models.Order, next *pagination.Cursor) *OrderList {
	list := &OrderList{Items: items}
	if next != nil {
		list.Cursor = pagination.EncodeCursor(*next)
	}
	return list
}
