package valuation_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/model"
	"github.com/stockpulse/paper-engine/internal/valuation"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestPortfolioValue(t *testing.T) {
	holdings := []model.Holding{
		{Symbol: "AAPL", Quantity: 10, CurrentPrice: d(200)},
		{Symbol: "MSFT", Quantity: 5, CurrentPrice: d(300)},
	}
	if v := valuation.PortfolioValue(holdings); !v.Equal(d(3500)) {
		t.Errorf("value = %s, want 3500", v)
	}
}

func TestPortfolioValue_DefaultsQuantityToOne(t *testing.T) {
	// Real-portfolio holdings carry no quantity; each symbol counts once.
	holdings := []model.Holding{
		{Symbol: "AAPL", CurrentPrice: d(200)},
		{Symbol: "MSFT", CurrentPrice: d(300)},
	}
	if v := valuation.PortfolioValue(holdings); !v.Equal(d(500)) {
		t.Errorf("value = %s, want 500", v)
	}
}

func TestPortfolioValue_Empty(t *testing.T) {
	if v := valuation.PortfolioValue(nil); !v.IsZero() {
		t.Errorf("empty portfolio value = %s, want 0", v)
	}
}

func TestComputeGainLoss(t *testing.T) {
	holdings := []model.Holding{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: d(160), CurrentPrice: d(200)},
	}
	gl := valuation.ComputeGainLoss(holdings)

	if !gl.Amount.Equal(d(400)) {
		t.Errorf("gain amount = %s, want 400", gl.Amount)
	}
	// 400 / 1600 * 100 = 25
	if !gl.Percent.Equal(d(25)) {
		t.Errorf("gain percent = %s, want 25", gl.Percent)
	}
}

func TestComputeGainLoss_Loss(t *testing.T) {
	holdings := []model.Holding{
		{Symbol: "AAPL", Quantity: 4, AveragePrice: d(100), CurrentPrice: d(75)},
	}
	gl := valuation.ComputeGainLoss(holdings)

	if !gl.Amount.Equal(d(-100)) {
		t.Errorf("gain amount = %s, want -100", gl.Amount)
	}
	if !gl.Percent.Equal(d(-25)) {
		t.Errorf("gain percent = %s, want -25", gl.Percent)
	}
}

func TestComputeGainLoss_ZeroSpentGuard(t *testing.T) {
	gl := valuation.ComputeGainLoss(nil)
	if !gl.Amount.IsZero() || !gl.Percent.IsZero() {
		t.Errorf("empty account gain/loss = %s/%s, want 0/0", gl.Amount, gl.Percent)
	}

	// Zero cost basis with a market value still reports percent 0.
	free := []model.Holding{{Symbol: "GIFT", Quantity: 3, CurrentPrice: d(10)}}
	gl = valuation.ComputeGainLoss(free)
	if !gl.Amount.Equal(d(30)) {
		t.Errorf("gain amount = %s, want 30", gl.Amount)
	}
	if !gl.Percent.IsZero() {
		t.Errorf("percent must be 0 when nothing was spent, got %s", gl.Percent)
	}
}
