// Package filter describes field-level selection criteria accepted by
// list endpoints.
package filter

// ComparisonType identifies how a field is matched against a value.
type ComparisonType string

const (
	Equal          ComparisonType = "eq"
	NotEqual       ComparisonType = "neq"
	LessOrEqual    ComparisonType = "lte"
	GreaterOrEqual ComparisonType = "gte"
	InList         ComparisonType = "in"
	NotInList      ComparisonType = "nin"
	Contains       ComparisonType = "contains" // case-insensitive substring
	NotContains    ComparisonType = "ncontains"

	// Hierarchy operators match a node together with its whole subtree.
	InHierarchy    ComparisonType = "in_hierarchy"
	NotInHierarchy ComparisonType = "nin_hierarchy"

	IsNull    ComparisonType = "null"
	IsNotNull ComparisonType = "not_null"
)

// Item is a single selection criterion. Value may be a scalar or, for
// list operators, an array.
type Item struct {
	Field    string         `json:"field"`
	Operator ComparisonType `json:"operator"`
	Value    any            `json:"value"`
}
