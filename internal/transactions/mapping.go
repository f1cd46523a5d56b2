package transactions

import (
	"fmt"
	"net/url"

	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

var projection = query.
	NewProjectionMap("", "transactions", "t").
	Project("id", "id").
	Project("reference", "reference").
	Project("customer_name", "customerName").
	Project("customer_id", "customerId").
	Project("commodity_type", "commodityType").
	Project("amount", "amount").
	Project("currency", "currency").
	Project("status", "status").
	Project("shariah_status", "shariahStatus").
	Project("violation_count", "violationCount").
	Project("created_at", "createdAt").
	Project("updated_at", "updatedAt")

var defaultSort = query.SortField{
	Field:      "createdAt",
	Descending: true,
}

// Filters narrows transaction queries. Nil fields are ignored.
type Filters struct {
	Status        *stages.TransactionStatus `json:"status,omitempty"`
	ShariahStatus *stages.ShariahStatus     `json:"shariahStatus,omitempty"`
	CommodityType *CommodityType            `json:"commodityType,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("status", f.Status).
		WhereEquals("shariahStatus", f.ShariahStatus).
		WhereEquals("commodityType", f.CommodityType)
}

func (f Filters) validate() error {
	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidStatus, *f.Status)
	}
	if f.ShariahStatus != nil && !f.ShariahStatus.Valid() {
		return fmt.Errorf("%w: shariahStatus %q", ErrInvalidStatus, *f.ShariahStatus)
	}
	return nil
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("status"); v != "" {
		s := stages.TransactionStatus(v)
		f.Status = &s
	}

	if v := values.Get("shariahStatus"); v != "" {
		s := stages.ShariahStatus(v)
		f.ShariahStatus = &s
	}

	if v := values.Get("commodityType"); v != "" {
		c := CommodityType(v)
		f.CommodityType = &c
	}

	return f
}

func scanTransaction(s repository.Scanner) (Transaction, error) {
	var t Transaction
	err := s.Scan(
		&t.ID,
		&t.Reference,
		&t.CustomerName,
		&t.CustomerID,
		&t.CommodityType,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.ShariahStatus,
		&t.ViolationCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}
