package certificates

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
	"github.com/JaimeStill/tawarruq/pkg/formatting"
)

// Payload is the supporting data carried by a certificate. The common fields
// are always set; the remaining groups are set for the matching type only.
type Payload struct {
	DocumentType   Type      `json:"documentType"`
	TransactionRef string    `json:"transactionRef"`
	GeneratedAt    time.Time `json:"generatedAt"`
	BursaRef       string    `json:"bursaRef"`

	PrincipalName  string           `json:"principalName,omitempty"`
	AgentName      string           `json:"agentName,omitempty"`
	WakalahPurpose string           `json:"wakalahPurpose,omitempty"`
	WakalahFee     *decimal.Decimal `json:"wakalahFee,omitempty"`
	Witness        string           `json:"witness,omitempty"`

	CommodityDescription string           `json:"commodityDescription,omitempty"`
	Quantity             int              `json:"quantity,omitempty"`
	UnitPrice            *decimal.Decimal `json:"unitPrice,omitempty"`
	Currency             string           `json:"currency,omitempty"`
	BursaTradeRef        string           `json:"bursaTradeRef,omitempty"`

	SaleMethod     string           `json:"saleMethod,omitempty"`
	BuyerName      string           `json:"buyerName,omitempty"`
	ProfitMargin   *decimal.Decimal `json:"profitMargin,omitempty"`
	SettlementDate *time.Time       `json:"settlementDate,omitempty"`
}

const (
	principalName  = "Customer"
	agentName      = "Bursa Suq As Sila"
	wakalahPurpose = "Purchase of CPO"
	saleMethod     = "Murabahah"
	buyerName      = "Third Party Buyer"
	settlementDays = 2
)

var profitMargin = decimal.RequireFromString("2.5")

var commodityDescriptions = map[transactions.CommodityType]string{
	transactions.CommodityCPO:   "Crude Palm Oil (CPO)",
	transactions.CommodityFPOL:  "Palm Olein (FPOL)",
	transactions.CommodityFUPO:  "Palm Oil Products (FUPO)",
	transactions.CommodityFGLD:  "Gold (FGLD)",
	transactions.CommodityOther: "Shariah-compliant commodity",
}

// Synthesize issues the certificate for record, which has just completed.
// The payload is a deterministic function of the transaction, the record,
// and now, apart from the random suffix of the certificate number.
func Synthesize(tx transactions.Transaction, record stages.Record, now time.Time) (Certificate, error) {
	now = now.UTC()
	typ := TypeFor(record.Stage)

	p := Payload{
		DocumentType:   typ,
		TransactionRef: tx.Reference,
		GeneratedAt:    now,
		BursaRef:       "BMD-" + shortCode(record.ID),
	}

	switch typ {
	case TypeWakalah:
		fee := decimal.Zero
		p.PrincipalName = principalName
		p.AgentName = agentName
		p.WakalahPurpose = wakalahPurpose
		p.WakalahFee = &fee
	case TypeQabd:
		quantity, price := lot(tx.ID)
		p.CommodityDescription = describe(tx.CommodityType)
		p.Quantity = quantity
		p.UnitPrice = &price
		p.Currency = tx.Currency
		p.BursaTradeRef = fmt.Sprintf("%s-%s-%s", commodityCode(tx.CommodityType), now.Format("20060102"), shortCode(tx.ID))
	case TypeLiquidation:
		settlement := now.AddDate(0, 0, settlementDays)
		margin := profitMargin
		p.SaleMethod = saleMethod
		p.BuyerName = buyerName
		p.ProfitMargin = &margin
		p.SettlementDate = &settlement
	}

	data, err := json.Marshal(p)
	if err != nil {
		return Certificate{}, fmt.Errorf("encode certificate payload: %w", err)
	}

	return Certificate{
		ID:            uuid.New(),
		Number:        Number(typ, now),
		Type:          typ,
		StageRecordID: record.ID,
		TransactionID: tx.ID,
		Issuer:        Issuer,
		IssuedAt:      now,
		Data:          data,
	}, nil
}

// Number builds a certificate number: CERT-<prefix>-YYYYMMDD-XXXXXX.
func Number(t Type, at time.Time) string {
	return formatting.Reference("CERT-"+t.Prefix(), at)
}

// lot derives a quantity in [1, 100] lots and a unit price in [3000, 3999]
// from the transaction id.
func lot(id uuid.UUID) (int, decimal.Decimal) {
	q := binary.BigEndian.Uint32(id[0:4])%100 + 1
	p := binary.BigEndian.Uint32(id[4:8])%1000 + 3000
	return int(q), decimal.NewFromInt(int64(p))
}

func describe(c transactions.CommodityType) string {
	if d, ok := commodityDescriptions[c]; ok {
		return d
	}
	return string(c)
}

func commodityCode(c transactions.CommodityType) string {
	if c == "" {
		return string(transactions.CommodityCPO)
	}
	return string(c)
}

func shortCode(id uuid.UUID) string {
	return strings.ToUpper(fmt.Sprintf("%x", id[:4]))
}
