package transactions

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/pagination"
)

// System defines the transaction domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Transaction], error)

	Find(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// Detail returns the transaction with its stage records and its 50 most recent log entries.
	Detail(ctx context.Context, id uuid.UUID) (*Detail, error)

	// Create validates cmd and stores the transaction with its three PENDING stage records.
	Create(ctx context.Context, cmd CreateCommand) (*Detail, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, cmd StatusCommand) (*Transaction, error)

	Stats(ctx context.Context) (*Stats, error)
}
