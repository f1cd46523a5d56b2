package certificates

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/pagination"
)

// System defines read access to issued certificates and their blob archive.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[View], error)

	// Find looks a certificate up by UUID or, when ref is not a UUID, by number.
	Find(ctx context.Context, ref string) (*View, error)

	// ForTransaction returns the certificates currently linked from the
	// transaction's stage records, ordered by stage.
	ForTransaction(ctx context.Context, transactionID uuid.UUID) ([]View, error)

	// Download returns the archived document for ref. Certificates without an
	// archived copy are rendered from the database. The caller closes the reader.
	Download(ctx context.Context, ref string) (*View, io.ReadCloser, error)

	// Archive uploads the certificate document to blob storage unless it is
	// already present. It is a no-op when storage is disabled.
	Archive(ctx context.Context, id uuid.UUID) error
}
