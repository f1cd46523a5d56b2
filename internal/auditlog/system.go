package auditlog

import (
	"context"

	"github.com/JaimeStill/tawarruq/pkg/pagination"
)

// System exposes read access to the audit log.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)

	// Recent returns the latest entries across all transactions, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
