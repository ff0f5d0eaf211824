package billing

import "strings"

// Category selects the quantity basis a metered service bills against.
type Category int

const (
	// CategoryGeneric bills the order's total item quantity.
	CategoryGeneric Category = iota
	// CategoryCasePick bills full cases, sized by packaging metadata.
	CategoryCasePick
	// CategoryResidualPick bills the units left over after full cases.
	CategoryResidualPick
	// CategoryUniqueSKU bills the count of distinct SKUs on the order.
	CategoryUniqueSKU
)

// ServiceCategory maps a service name to its quantity basis. Matching is on
// a case-insensitive substring so names like "Standard Case Pick" still land
// in the case-pick category.
func ServiceCategory(name string) Category {
	lowered := strings.ToLower(name)
	switch {
	case strings.Contains(lowered, "case pick"):
		return CategoryCasePick
	case strings.Contains(lowered, "pick cost"):
		return CategoryResidualPick
	case strings.Contains(lowered, "sku cost"):
		return CategoryUniqueSKU
	default:
		return CategoryGeneric
	}
}
