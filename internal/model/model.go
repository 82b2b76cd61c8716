// Package model defines the core domain types shared across the portfolio engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TxBuy  = "Buy"
	TxSell = "Sell"
)

// StartingBalance is the cash balance of a fresh or reset simulated account.
var StartingBalance = decimal.NewFromInt(10000)

// symbolRegex matches a normalized ticker symbol: AAPL, BRK.B, BF-B.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// ErrInvalidSymbol is returned for symbols that do not normalize to a ticker.
var ErrInvalidSymbol = errors.New("model: invalid ticker symbol")

// NormalizeSymbol trims, uppercases, and validates a ticker symbol.
// All downstream code works with normalized symbols only.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// Holding is one owned position in a simulated account. CurrentPrice is
// attached at read time from the quote service and is not part of the
// persisted snapshot.
type Holding struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"price"`
}

// Transaction is an immutable record of one executed trade. Entries are
// append-only, newest first, and only ever bulk-cleared by a reset.
type Transaction struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // TxBuy or TxSell
	Symbol    string          `json:"symbol"`
	Notional  decimal.Decimal `json:"notional"` // price × quantity at execution
	Timestamp time.Time       `json:"timestamp"`
}

// SimulatedAccount is the aggregate root of one user's paper-trading state.
// Holdings are unique per symbol; a holding whose quantity reaches zero is
// removed, never retained.
type SimulatedAccount struct {
	Balance      decimal.Decimal `json:"balance"`
	Holdings     []Holding       `json:"portfolio"`
	Transactions []Transaction   `json:"transactions"`
}

// NewSimulatedAccount returns a fresh account with the starting balance and
// no holdings or transactions.
func NewSimulatedAccount() *SimulatedAccount {
	return &SimulatedAccount{
		Balance:      StartingBalance,
		Holdings:     []Holding{},
		Transactions: []Transaction{},
	}
}

// Holding returns the index of the holding for symbol, or -1.
func (a *SimulatedAccount) Holding(symbol string) int {
	for i := range a.Holdings {
		if a.Holdings[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

// HeldQuantity returns the quantity held for symbol, zero if untracked.
func (a *SimulatedAccount) HeldQuantity(symbol string) int64 {
	if i := a.Holding(symbol); i >= 0 {
		return a.Holdings[i].Quantity
	}
	return 0
}

// ApplyBuy debits the balance and creates or merges the holding for symbol,
// recomputing the quantity-weighted average price. Callers validate funds
// and quantity before applying.
func (a *SimulatedAccount) ApplyBuy(symbol string, price decimal.Decimal, quantity int64) {
	qty := decimal.NewFromInt(quantity)
	a.Balance = a.Balance.Sub(price.Mul(qty))

	if i := a.Holding(symbol); i >= 0 {
		h := &a.Holdings[i]
		oldQty := decimal.NewFromInt(h.Quantity)
		totalCost := h.AveragePrice.Mul(oldQty).Add(price.Mul(qty))
		h.Quantity += quantity
		h.AveragePrice = totalCost.Div(decimal.NewFromInt(h.Quantity))
		return
	}

	a.Holdings = append(a.Holdings, Holding{
		Symbol:       symbol,
		Quantity:     quantity,
		AveragePrice: price,
	})
}

// ApplySell credits the balance and reduces the holding's quantity, removing
// the holding entirely at zero. The average price of any remainder is left
// unchanged. Callers validate the held quantity before applying.
func (a *SimulatedAccount) ApplySell(symbol string, price decimal.Decimal, quantity int64) {
	a.Balance = a.Balance.Add(price.Mul(decimal.NewFromInt(quantity)))

	i := a.Holding(symbol)
	if i < 0 {
		return
	}
	a.Holdings[i].Quantity -= quantity
	if a.Holdings[i].Quantity <= 0 {
		a.Holdings = append(a.Holdings[:i], a.Holdings[i+1:]...)
	}
}

// RemoveHolding drops the holding for symbol without touching the balance.
// Removal is an administrative stop-tracking action, not a sale.
func (a *SimulatedAccount) RemoveHolding(symbol string) bool {
	i := a.Holding(symbol)
	if i < 0 {
		return false
	}
	a.Holdings = append(a.Holdings[:i], a.Holdings[i+1:]...)
	return true
}

// Record prepends a transaction so history renders newest-first.
func (a *SimulatedAccount) Record(tx Transaction) {
	a.Transactions = append([]Transaction{tx}, a.Transactions...)
}

// Normalize repairs an account decoded from an untrusted or drifted snapshot:
// a zero-value account defaults to the starting balance, nil slices become
// empty, and holdings with a missing symbol or non-positive quantity are dropped.
func (a *SimulatedAccount) Normalize() {
	if a.Balance.IsZero() && len(a.Holdings) == 0 && len(a.Transactions) == 0 {
		a.Balance = StartingBalance
	}
	if a.Holdings == nil {
		a.Holdings = []Holding{}
	}
	if a.Transactions == nil {
		a.Transactions = []Transaction{}
	}
	kept := a.Holdings[:0]
	for _, h := range a.Holdings {
		if h.Quantity > 0 && h.Symbol != "" {
			kept = append(kept, h)
		}
	}
	a.Holdings = kept
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing internal slices to mutation.
func (a *SimulatedAccount) Clone() *SimulatedAccount {
	c := &SimulatedAccount{
		Balance:      a.Balance,
		Holdings:     make([]Holding, len(a.Holdings)),
		Transactions: make([]Transaction, len(a.Transactions)),
	}
	copy(c.Holdings, a.Holdings)
	copy(c.Transactions, a.Transactions)
	return c
}

// RealPortfolio is the simpler real-mode view: tracked symbols with prices
// attached at read time. There is no quantity or cost basis and no local
// mirror; the remote ledger is the only source.
type RealPortfolio struct {
	Holdings []Holding `json:"portfolio"`
}
