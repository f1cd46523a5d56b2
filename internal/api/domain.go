package api

import (
	"fmt"
	"io"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/certificates"
	"github.com/JaimeStill/tawarruq/internal/compliance"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/internal/transactions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Transactions transactions.System
	Certificates certificates.System
	AuditLog     auditlog.System
	Compliance   compliance.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	advisor, err := scoring.New(runtime.Lifecycle.Context(), runtime.Advisor, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("advisor init failed: %w", err)
	}
	if closer, ok := advisor.(io.Closer); ok {
		runtime.Lifecycle.OnShutdown(func() {
			<-runtime.Lifecycle.Context().Done()
			if err := closer.Close(); err != nil {
				runtime.Logger.Warn("advisor close failed", "error", err)
			}
		})
	}

	certsSystem := certificates.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)

	complianceSystem := compliance.New(
		compliance.NewSQLStore(db),
		runtime.Locker,
		advisor,
		certsSystem,
		runtime.Logger,
	)

	return &Domain{
		Transactions: transactions.New(db, runtime.Logger, runtime.Pagination),
		Certificates: certsSystem,
		AuditLog:     auditlog.New(db, runtime.Logger, runtime.Pagination),
		Compliance:   complianceSystem,
	}, nil
}
