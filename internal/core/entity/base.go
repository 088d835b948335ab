// Package entity holds the base building blocks catalogs and documents
// are assembled from.
package entity

import (
	"time"

	"stockpost/internal/core/id"
)

// BaseEntity is embedded by every persisted entity.
type BaseEntity struct {
	// ID is a UUIDv7 primary key.
	ID id.ID `db:"id" json:"id"`

	// DeletionMark soft-deletes the row. Marked rows are hidden from
	// lists unless explicitly requested.
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// Version increments on every update, enforcing optimistic locking.
	Version int `db:"version" json:"version"`
}

// NewBaseEntity generates an ID and starts at version 1.
func NewBaseEntity() BaseEntity {
	return BaseEntity{ID: id.New(), Version: 1}
}

// Touch bumps the optimistic-lock version.
func (b *BaseEntity) Touch() {
	b.Version++
}

// BaseDocument adds audit fields on top of BaseEntity.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument generates an ID and stamps both timestamps with the
// current UTC time.
func NewBaseDocument() BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch refreshes UpdatedAt and bumps the version.
func (b *BaseDocument) Touch() {
	b.UpdatedAt = time.Now().UTC()
	b.BaseEntity.Touch()
}

// BaseCatalog is the entity base for reference data. Catalogs carry no
// audit timestamps.
type BaseCatalog struct {
	BaseEntity
}

// NewBaseCatalog generates an ID for a new catalog entry.
func NewBaseCatalog() BaseCatalog {
	return BaseCatalog{BaseEntity: NewBaseEntity()}
}
