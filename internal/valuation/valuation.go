// Package valuation derives portfolio value and unrealized gain/loss from
// holdings and live prices. Everything here is a pure function of its inputs,
// recomputed on every read and never cached.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// PortfolioValue sums price × quantity over all holdings. A holding without
// an explicit quantity counts once, which lets the same function value both
// real portfolios (symbol-only) and simulated ones.
func PortfolioValue(holdings []model.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		qty := h.Quantity
		if qty == 0 {
			qty = 1
		}
		total = total.Add(h.CurrentPrice.Mul(decimal.NewFromInt(qty)))
	}
	return total
}

// GainLoss is the unrealized result of a set of holdings.
type GainLoss struct {
	Amount  decimal.Decimal `json:"gain_amount"`
	Percent decimal.Decimal `json:"gain_percent"`
}

// ComputeGainLoss compares current value against cost basis. Percent is
// defined as zero for an empty cost basis — an empty account has no gain,
// not a division error.
func ComputeGainLoss(holdings []model.Holding) GainLoss {
	totalSpent := decimal.Zero
	currentValue := decimal.Zero

	for _, h := range holdings {
		qty := decimal.NewFromInt(h.Quantity)
		totalSpent = totalSpent.Add(h.AveragePrice.Mul(qty))
		currentValue = currentValue.Add(h.CurrentPrice.Mul(qty))
	}

	gl := GainLoss{Amount: currentValue.Sub(totalSpent), Percent: decimal.Zero}
	if totalSpent.IsPositive() {
		gl.Percent = gl.Amount.Div(totalSpent).Mul(hundred)
	}
	return gl
}
