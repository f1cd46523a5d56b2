package certificates

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tawarruq/pkg/formatting"
)

const missing = "N/A"

// Format returns the display label and detail lines for a certificate.
// A payload that cannot be decoded yields no detail lines.
func Format(c Certificate) (string, []string) {
	label := c.Type.Label()

	var p Payload
	if err := json.Unmarshal(c.Data, &p); err != nil {
		return label, []string{}
	}

	var details []string
	switch c.Type {
	case TypeWakalah:
		details = []string{
			"Principal: " + text(p.PrincipalName),
			"Agent: " + text(p.AgentName),
			"Purpose: " + text(p.WakalahPurpose),
		}
		if p.Witness != "" {
			details = append(details, "Witness: "+p.Witness)
		}
	case TypeQabd:
		quantity := missing
		if p.Quantity > 0 {
			quantity = formatting.FormatAmount(decimal.NewFromInt(int64(p.Quantity)))
		}
		price := missing
		if p.UnitPrice != nil {
			currency := p.Currency
			if currency == "" {
				currency = "MYR"
			}
			price = formatting.FormatMoney(currency, *p.UnitPrice)
		}
		details = []string{
			"Commodity: " + text(p.CommodityDescription),
			"Quantity: " + quantity + " lots",
			"Unit Price: " + price,
		}
		if p.BursaTradeRef != "" {
			details = append(details, "Bursa Ref: "+p.BursaTradeRef)
		}
	case TypeLiquidation:
		margin := missing
		if p.ProfitMargin != nil {
			margin = p.ProfitMargin.String() + "%"
		}
		details = []string{
			"Sale Method: " + text(p.SaleMethod),
			"Buyer: " + text(p.BuyerName),
			"Profit Margin: " + margin,
		}
		if p.SettlementDate != nil {
			details = append(details, "Settlement: "+p.SettlementDate.Format("2006-01-02"))
		}
	default:
		details = []string{}
	}

	return label, details
}

func text(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func (v *View) decorate() {
	v.FormattedType, v.Details = Format(v.Certificate)
}
