package products

import (
	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

// PurchasabilityInput drives the shared gating checks for buyer-facing
// cart and checkout mutations.
type PurchasabilityInput struct {
	Product *models.Product
	BuyerID uuid.UUID
	// Quantity of zero skips the stock check; checkout re-checks stock
	// under the row lock anyway.
	Quantity int
}

// EnsurePurchasable enforces canonical rules so inactive or self-owned
// listings never enter a cart or an order.
func EnsurePurchasable(input PurchasabilityInput) error {
	if input.Product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if input.Product.Status != enums.ProductStatusActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "product unavailable")
	}
	if input.BuyerID != uuid.Nil && input.Product.SellerID == input.BuyerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot purchase own product")
	}
	if input.Quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Quantity > 0 && input.Product.Quantity < input.Quantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock")
	}
	return nil
}
