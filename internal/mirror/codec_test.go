package mirror

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/model"
)

func TestDecode_AbsentBalanceDefaultsWithHoldings(t *testing.T) {
	// A drifted snapshot that kept its holdings but lost the balance field.
	data := []byte(`{"portfolio":[{"symbol":"AAPL","quantity":5,"average_price":"150"}]}`)

	account, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !account.Balance.Equal(model.StartingBalance) {
		t.Errorf("balance = %s, want %s", account.Balance, model.StartingBalance)
	}
	if len(account.Holdings) != 1 || account.Holdings[0].Quantity != 5 {
		t.Errorf("holdings = %+v", account.Holdings)
	}
	if account.Transactions == nil {
		t.Error("transactions must decode to an empty slice, not nil")
	}
}

func TestDecode_ExplicitZeroBalanceIsKept(t *testing.T) {
	// Spent-to-zero is a legitimate state and must not be repaired.
	data := []byte(`{"balance":"0","portfolio":[{"symbol":"AAPL","quantity":5,"average_price":"150"}]}`)

	account, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !account.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", account.Balance)
	}
}

func TestDecode_EmptyObjectIsFreshAccount(t *testing.T) {
	account, err := decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !account.Balance.Equal(model.StartingBalance) {
		t.Errorf("balance = %s, want %s", account.Balance, model.StartingBalance)
	}
	if account.Holdings == nil || account.Transactions == nil {
		t.Error("slices must decode to empty, not nil")
	}
}

func TestDecode_DropsCorruptHoldings(t *testing.T) {
	data := []byte(`{"balance":"9000","portfolio":[{"symbol":"","quantity":3},{"symbol":"AAPL","quantity":0},{"symbol":"MSFT","quantity":2,"average_price":"300"}]}`)

	account, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(account.Holdings) != 1 || account.Holdings[0].Symbol != "MSFT" {
		t.Errorf("holdings = %+v", account.Holdings)
	}
	if !account.Balance.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("balance = %s, want 9000", account.Balance)
	}
}
