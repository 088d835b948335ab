// Package domain provides core business logic types shared by catalogs and documents.
package domain

import (
	"stockpost/internal/core/id"
	"stockpost/internal/domain/filter"
)

// ListFilter carries the filtering and paging options shared by list queries.
type ListFilter struct {
	// Search matches name or code (documents match number).
	Search string

	// IncludeDeleted includes rows carrying a deletion mark.
	IncludeDeleted bool

	// ParentID restricts hierarchical catalogs to children of one node.
	ParentID *string

	// IsFolder selects folders only (true) or leaf items only (false).
	IsFolder *bool

	// IDs restricts the result to an explicit set.
	IDs []id.ID

	// Conditions holds field-level selection criteria supplied by the client.
	Conditions []filter.Item

	// OrderBy names the sort column, "-" prefix for descending.
	OrderBy string

	Limit  int
	Offset int
}

// DefaultListFilter returns the defaults list endpoints start from.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "name",
	}
}

// ListResult is a page of items together with the unpaged total.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
