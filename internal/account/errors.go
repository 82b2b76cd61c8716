package account

import "fmt"

// ValidationError rejects bad user input before any network call: a
// non-positive quantity, an oversell, or insufficient funds. No state is
// mutated and the ledger is never contacted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "account: " + e.Reason }

// TradeExecutionError reports a trade the remote ledger did not accept.
// Local state is left untouched; the wrapped error carries the server's
// reason when one was provided.
type TradeExecutionError struct {
	Op  string // "buy", "sell", "remove", "reset"
	Err error
}

func (e *TradeExecutionError) Error() string {
	return fmt.Sprintf("account: %s failed: %v", e.Op, e.Err)
}

func (e *TradeExecutionError) Unwrap() error { return e.Err }
