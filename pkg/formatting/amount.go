package formatting

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatAmount renders a monetary amount with English digit grouping.
// Whole amounts omit the fractional part; others are rounded to two places.
func FormatAmount(amount decimal.Decimal) string {
	p := message.NewPrinter(language.English)

	if amount.IsInteger() {
		return p.Sprintf("%d", amount.IntPart())
	}

	f, _ := amount.Round(2).Float64()
	return p.Sprintf("%.2f", f)
}

// FormatMoney prefixes FormatAmount with a currency code, e.g. "MYR 1,500,000".
func FormatMoney(currency string, amount decimal.Decimal) string {
	return currency + " " + FormatAmount(amount)
}
