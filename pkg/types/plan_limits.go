package types

// PlanLimits is the jsonb limits structure on a subscription plan.
// -1 means unlimited.
type PlanLimits struct {
	Products     int `json:"products"`
	Orders       int `json:"orders"`
	Calculations int `json:"calculations"`
}

// For returns the ceiling for the named feature; unknown features are
// treated as zero (nothing allowed).
func (l PlanLimits) For(feature string) int {
	switch feature {
	case "products":
		return l.Products
	case "orders":
		return l.Orders
	case "calculations":
		return l.Calculations
	default:
		return 0
	}
}
