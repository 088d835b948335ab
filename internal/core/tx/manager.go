// Package tx defines the transaction boundary the domain depends on.
// The PostgreSQL implementation lives in infrastructure/storage/postgres;
// services only ever see this interface.
package tx

import (
	"context"
)

// Manager runs a function inside a database transaction: commit when fn
// returns nil, rollback otherwise. A nested call joins the transaction
// already carried by the context.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
