package ewallet

import (
	"github.com/shopspring/decimal"

	"attn/backend/internal/domain"
)

type band struct {
	max decimal.Decimal
	fee decimal.Decimal
}

var (
	minAmount = decimal.NewFromInt(1)
	bands     = buildBands()
)

// buildBands returns the cash-in fee table: 5 up to 100, 10 up to 500, then
// 10 more for every further 500 up to 10500.
func buildBands() []band {
	out := []band{
		{max: decimal.NewFromInt(100), fee: decimal.NewFromInt(5)},
		{max: decimal.NewFromInt(500), fee: decimal.NewFromInt(10)},
	}
	for upper, fee := int64(1000), int64(20); upper <= 10500; upper, fee = upper+500, fee+10 {
		out = append(out, band{max: decimal.NewFromInt(upper), fee: decimal.NewFromInt(fee)})
	}
	return out
}

// Fee returns the service fee for a cash-in amount. Amounts below 1 or above
// the last band carry no fee.
func Fee(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(minAmount) {
		return decimal.Zero
	}
	for _, b := range bands {
		if amount.LessThanOrEqual(b.max) {
			return b.fee
		}
	}
	return decimal.Zero
}

func Quote(amount decimal.Decimal) domain.EwalletFeeQuote {
	fee := Fee(amount)
	return domain.EwalletFeeQuote{
		Amount: amount,
		Fee:    fee,
		Total:  amount.Add(fee),
	}
}
