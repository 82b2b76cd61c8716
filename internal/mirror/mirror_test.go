package mirror_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/mirror"
	"github.com/stockpulse/paper-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mirror.NewMemoryStore()

	a := model.NewSimulatedAccount()
	a.ApplyBuy("AAPL", d(150), 10)
	a.Record(model.Transaction{ID: "t1", Type: model.TxBuy, Symbol: "AAPL", Notional: d(1500)})

	if err := store.Save(ctx, "user1", a); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Load(ctx, "user1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to exist")
	}

	if !got.Balance.Equal(a.Balance) {
		t.Errorf("balance = %s, want %s", got.Balance, a.Balance)
	}
	if len(got.Holdings) != 1 || got.Holdings[0].Symbol != "AAPL" || got.Holdings[0].Quantity != 10 {
		t.Errorf("holdings round-trip mismatch: %+v", got.Holdings)
	}
	if !got.Holdings[0].AveragePrice.Equal(d(150)) {
		t.Errorf("average price = %s, want 150", got.Holdings[0].AveragePrice)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].ID != "t1" {
		t.Errorf("transactions round-trip mismatch: %+v", got.Transactions)
	}
}

func TestMemoryStore_AbsentIsNormal(t *testing.T) {
	store := mirror.NewMemoryStore()

	_, ok, err := store.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if ok {
		t.Error("expected no snapshot")
	}
}

func TestMemoryStore_ClearThenLoadAbsent(t *testing.T) {
	ctx := context.Background()
	store := mirror.NewMemoryStore()

	if err := store.Save(ctx, "user1", model.NewSimulatedAccount()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx, "user1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	_, ok, _ := store.Load(ctx, "user1")
	if ok {
		t.Error("snapshot should be absent after clear")
	}

	// Clearing again is a no-op.
	if err := store.Clear(ctx, "user1"); err != nil {
		t.Errorf("double clear: %v", err)
	}
}

func TestMemoryStore_SnapshotStripsCurrentPrices(t *testing.T) {
	ctx := context.Background()
	store := mirror.NewMemoryStore()

	a := model.NewSimulatedAccount()
	a.ApplyBuy("AAPL", d(150), 10)
	a.Holdings[0].CurrentPrice = d(987) // read-time data, must not persist

	if err := store.Save(ctx, "user1", a); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, _ := store.Load(ctx, "user1")

	if !got.Holdings[0].CurrentPrice.IsZero() {
		t.Errorf("current price leaked into snapshot: %s", got.Holdings[0].CurrentPrice)
	}
	if a.Holdings[0].CurrentPrice.IsZero() {
		t.Error("save must not mutate the caller's account")
	}
}

func TestMemoryStore_OverwriteIsFullSnapshot(t *testing.T) {
	ctx := context.Background()
	store := mirror.NewMemoryStore()

	a := model.NewSimulatedAccount()
	a.ApplyBuy("AAPL", d(150), 10)
	store.Save(ctx, "user1", a)

	fresh := model.NewSimulatedAccount()
	store.Save(ctx, "user1", fresh)

	got, _, _ := store.Load(ctx, "user1")
	if len(got.Holdings) != 0 {
		t.Errorf("save must overwrite, not merge: %+v", got.Holdings)
	}
	if !got.Balance.Equal(d(10000)) {
		t.Errorf("balance = %s, want 10000", got.Balance)
	}
}

func TestMemoryStore_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := mirror.NewMemoryStore()

	a := model.NewSimulatedAccount()
	a.ApplyBuy("AAPL", d(150), 10)
	store.Save(ctx, "user1", a)

	_, ok, _ := store.Load(ctx, "user2")
	if ok {
		t.Error("snapshots must be keyed per user")
	}

	store.Clear(ctx, "user2")
	_, ok, _ = store.Load(ctx, "user1")
	if !ok {
		t.Error("clearing one user must not touch another")
	}
}
