package enums

import "fmt"

// PlanFeature names a usage ceiling attached to a subscription plan.
type PlanFeature string

const (
	PlanFeatureProducts     PlanFeature = "products"
	PlanFeatureOrders       PlanFeature = "orders"
	PlanFeatureCalculations PlanFeature = "calculations"
)

var validPlanFeatures = []PlanFeature{
	PlanFeatureProducts,
	PlanFeatureOrders,
	PlanFeatureCalculations,
}

// String implements fmt.Stringer.
func (f PlanFeature) String() string {
	return string(f)
}

// IsValid reports whether the value is a known PlanFeature.
func (f PlanFeature) IsValid() bool {
	for _, candidate := range validPlanFeatures {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParsePlanFeature converts raw input into a PlanFeature.
func ParsePlanFeature(value string) (PlanFeature, error) {
	for _, candidate := range validPlanFeatures {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan feature %q", value)
}
