package audit

import (
	"context"

	appctx "stockpost/internal/core/context"
)

// EnrichCreatedByDirect sets CreatedBy/UpdatedBy from the context user.
// Use in before-create hooks. No-op when no user is authenticated.
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	userID := appctx.GetUserID(ctx)
	if userID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = userID
		*updatedBy = userID
	}
}

// EnrichUpdatedByDirect sets only UpdatedBy from the context user.
// Use in before-update hooks.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	userID := appctx.GetUserID(ctx)
	if userID != "" && updatedBy != nil {
		*updatedBy = userID
	}
}
