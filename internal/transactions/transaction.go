// Package transactions owns the Tawarruq transaction entity: creation together
// with its three stage records, listing, detail views, administrative status
// overrides, and dashboard statistics.
package transactions

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/stages"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultCurrency is applied when a create command omits currency.
const DefaultCurrency = "MYR"

// CommodityType identifies the Bursa Suq Al-Sila commodity underlying a transaction.
type CommodityType string

const (
	CommodityCPO   CommodityType = "CPO"
	CommodityFPOL  CommodityType = "FPOL"
	CommodityFUPO  CommodityType = "FUPO"
	CommodityFGLD  CommodityType = "FGLD"
	CommodityOther CommodityType = "OTHER"
)

// Transaction is a financing transaction and its aggregate compliance state.
type Transaction struct {
	ID             uuid.UUID                `json:"id"`
	Reference      string                   `json:"reference"`
	CustomerName   string                   `json:"customerName"`
	CustomerID     string                   `json:"customerId"`
	CommodityType  CommodityType            `json:"commodityType"`
	Amount         decimal.Decimal          `json:"amount"`
	Currency       string                   `json:"currency"`
	Status         stages.TransactionStatus `json:"status"`
	ShariahStatus  stages.ShariahStatus     `json:"shariahStatus"`
	ViolationCount int                      `json:"violationCount"`
	CreatedAt      time.Time                `json:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

// Aggregate returns the transaction's current status pair.
func (t Transaction) Aggregate() stages.Aggregate {
	return stages.Aggregate{Status: t.Status, ShariahStatus: t.ShariahStatus}
}

// CreateCommand carries the caller-supplied fields of a new transaction.
type CreateCommand struct {
	CustomerName  string          `json:"customerName" validate:"required,max=200"`
	CustomerID    string          `json:"customerId" validate:"required,max=100"`
	CommodityType CommodityType   `json:"commodityType" validate:"required,oneof=CPO FPOL FUPO FGLD OTHER"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3,uppercase"`
}

// Validate trims names, applies the default currency, and checks cmd.
func (c *CreateCommand) Validate() error {
	c.CustomerName = strings.TrimSpace(c.CustomerName)
	c.CustomerID = strings.TrimSpace(c.CustomerID)
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidCommand)
	}
	return nil
}

// StatusCommand is an administrative override of a transaction's aggregate status.
// A nil ShariahStatus leaves the current value in place.
type StatusCommand struct {
	Status        stages.TransactionStatus `json:"status" validate:"required"`
	ShariahStatus *stages.ShariahStatus    `json:"shariahStatus,omitempty"`
}

// Validate checks that both statuses are known values.
func (c StatusCommand) Validate() error {
	if !c.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidStatus, c.Status)
	}
	if c.ShariahStatus != nil && !c.ShariahStatus.Valid() {
		return fmt.Errorf("%w: shariahStatus %q", ErrInvalidStatus, *c.ShariahStatus)
	}
	return nil
}

// Detail is a transaction with its stage records ordered T0, T1, T2 and,
// for single-transaction views, its most recent log entries.
type Detail struct {
	Transaction
	Stages []stages.Record  `json:"stages"`
	Logs   []auditlog.Entry `json:"logs,omitempty"`
}

// Stats summarizes transaction counts for the dashboard.
type Stats struct {
	Total      int      `json:"total"`
	Pending    int      `json:"pending"`
	Processing int      `json:"processing"`
	Completed  int      `json:"completed"`
	Violations int      `json:"violations"`
	Recent     []Detail `json:"recent"`
}
