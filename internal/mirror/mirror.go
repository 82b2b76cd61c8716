// Package mirror persists per-user snapshots of the simulated account: the
// last-write-wins cache of the remote ledger's simulated state.
// Implementations include Redis, PostgreSQL, and in-memory (for testing).
package mirror

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/model"
)

// Store holds at most one snapshot per user. Save is a full-snapshot
// overwrite; absence of a snapshot is a normal condition, reported through
// the ok flag and never as an error.
type Store interface {
	// Load returns the stored snapshot for userID, or ok=false.
	Load(ctx context.Context, userID string) (*model.SimulatedAccount, bool, error)

	// Save overwrites the snapshot for userID.
	Save(ctx context.Context, userID string, account *model.SimulatedAccount) error

	// Clear removes the snapshot for userID. Clearing an absent key is a no-op.
	Clear(ctx context.Context, userID string) error
}

// encode serializes an account for storage. Current prices are read-time
// data and are stripped from the snapshot.
func encode(account *model.SimulatedAccount) ([]byte, error) {
	c := account.Clone()
	for i := range c.Holdings {
		c.Holdings[i].CurrentPrice = decimal.Zero
	}
	return json.Marshal(c)
}

// snapshot is the stored wire shape. Balance is a pointer so an absent field
// can be told apart from a legitimately spent-to-zero balance.
type snapshot struct {
	Balance      *decimal.Decimal    `json:"balance"`
	Holdings     []model.Holding     `json:"portfolio"`
	Transactions []model.Transaction `json:"transactions"`
}

// decode deserializes a snapshot defensively: shape drift yields defaulted
// fields rather than an error. An absent balance defaults to the starting
// balance even when holdings survived the drift.
func decode(data []byte) (*model.SimulatedAccount, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	account := &model.SimulatedAccount{
		Balance:      model.StartingBalance,
		Holdings:     snap.Holdings,
		Transactions: snap.Transactions,
	}
	if snap.Balance != nil {
		account.Balance = *snap.Balance
	}
	account.Normalize()
	return account, nil
}
