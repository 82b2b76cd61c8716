// Package account is the simulated trading state manager: the per-user
// paper-trading account, its trade execution rules, and its reconciliation
// against the remote ledger and the local mirror.
//
// The remote ledger is contacted before any local mutation; the mirror is
// rewritten after every change. Trade operations are serialized per user
// account, so two rapid sells cannot both read the same pre-decrement
// quantity.
package account

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/metrics"
	"github.com/stockpulse/paper-engine/internal/mirror"
	"github.com/stockpulse/paper-engine/internal/model"
	"github.com/stockpulse/paper-engine/internal/session"
	"github.com/stockpulse/paper-engine/internal/upstream"
)

// MirrorState drives reconciliation on simulated-mode entry.
type MirrorState int

const (
	// MirrorEmpty — no snapshot; fetch from the remote ledger.
	MirrorEmpty MirrorState = iota
	// MirrorCached — snapshot exists and is trusted; no remote call.
	MirrorCached
	// MirrorStale — a reset happened; bypass the snapshot and fetch fresh.
	MirrorStale
)

// Ledger is the slice of the upstream client the manager depends on.
type Ledger interface {
	GetSimulatedPortfolio(ctx context.Context, userID string) ([]model.Holding, error)
	Buy(ctx context.Context, userID, symbol string, price decimal.Decimal, quantity int64) error
	Sell(ctx context.Context, userID, symbol string, quantity int64) error
	Reset(ctx context.Context, userID string) error
	RemoveSimulated(ctx context.Context, userID, symbol string) error
}

// Quotes attaches current prices to holdings at read time.
type Quotes interface {
	AttachPrices(ctx context.Context, holdings []model.Holding) []model.Holding
}

// Manager owns every user's simulated account state.
type Manager struct {
	mirror mirror.Store
	ledger Ledger
	quotes Quotes

	mu    sync.Mutex
	users map[string]*userState
}

// userState is one user's working account. Its mutex serializes all trade
// and reconciliation operations for that user.
type userState struct {
	mu          sync.Mutex
	account     *model.SimulatedAccount
	loaded      bool
	forceReload bool
}

// NewManager creates a manager over the given mirror, ledger, and quote source.
func NewManager(m mirror.Store, ledger Ledger, quotes Quotes) *Manager {
	return &Manager{
		mirror: m,
		ledger: ledger,
		quotes: quotes,
		users:  make(map[string]*userState),
	}
}

func (m *Manager) user(userID string) *userState {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		u = &userState{}
		m.users[userID] = u
	}
	return u
}

// mirrorState classifies the mirror for reconciliation.
func (m *Manager) mirrorState(ctx context.Context, u *userState, userID string) (MirrorState, *model.SimulatedAccount) {
	if u.forceReload {
		return MirrorStale, nil
	}
	snapshot, ok, err := m.mirror.Load(ctx, userID)
	if err != nil {
		slog.Warn("mirror load failed, falling back to remote", "user", userID, "err", err)
		return MirrorEmpty, nil
	}
	if !ok {
		return MirrorEmpty, nil
	}
	return MirrorCached, snapshot
}

// EnterSimulated reconciles and returns the user's simulated account on mode
// entry. A trusted snapshot is adopted without a remote call; an empty or
// stale mirror forces a fetch from the remote ledger.
func (m *Manager) EnterSimulated(ctx context.Context, sess *session.Session) (*model.SimulatedAccount, error) {
	u := m.user(sess.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()

	state, snapshot := m.mirrorState(ctx, u, sess.UserID)
	switch state {
	case MirrorCached:
		u.account = snapshot
		u.loaded = true
		metrics.Reconciliations.WithLabelValues("mirror").Inc()

	case MirrorEmpty, MirrorStale:
		if err := m.adoptRemote(ctx, u, sess.UserID); err != nil {
			return nil, err
		}
		u.forceReload = false
		metrics.Reconciliations.WithLabelValues("remote").Inc()
	}

	return m.view(ctx, u), nil
}

// adoptRemote replaces the working holdings with the remote ledger's and
// persists the result. Balance and history are client-side state the ledger
// does not track; they carry over, defaulting on first use.
func (m *Manager) adoptRemote(ctx context.Context, u *userState, userID string) error {
	holdings, err := m.ledger.GetSimulatedPortfolio(ctx, userID)
	if err != nil {
		return err
	}

	if u.account == nil {
		u.account = model.NewSimulatedAccount()
	}
	u.account.Holdings = holdings
	u.account.Normalize()
	u.loaded = true

	m.persist(ctx, u, userID)
	return nil
}

// ensureLoaded lazily reconciles for callers that trade without an explicit
// mode entry first. Caller holds u.mu.
func (m *Manager) ensureLoaded(ctx context.Context, u *userState, userID string) error {
	if u.loaded && !u.forceReload {
		return nil
	}
	state, snapshot := m.mirrorState(ctx, u, userID)
	if state == MirrorCached {
		u.account = snapshot
		u.loaded = true
		return nil
	}
	if err := m.adoptRemote(ctx, u, userID); err != nil {
		return err
	}
	u.forceReload = false
	return nil
}

// Account returns the current simulated account with prices attached,
// reconciling first if needed.
func (m *Manager) Account(ctx context.Context, sess *session.Session) (*model.SimulatedAccount, error) {
	u := m.user(sess.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := m.ensureLoaded(ctx, u, sess.UserID); err != nil {
		return nil, err
	}
	return m.view(ctx, u), nil
}

// Buy validates and executes a buy. The ledger is informed first; only on
// its success do the balance, holdings, and history change.
func (m *Manager) Buy(ctx context.Context, sess *session.Session, symbol string, price decimal.Decimal, quantity int64) (*model.SimulatedAccount, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "invalid symbol"}
	}
	if quantity <= 0 {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "quantity must be a positive integer"}
	}
	if price.IsNegative() {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "price must not be negative"}
	}

	u := m.user(sess.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := m.ensureLoaded(ctx, u, sess.UserID); err != nil {
		return nil, err
	}

	notional := price.Mul(decimal.NewFromInt(quantity))
	if u.account.Balance.LessThan(notional) {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "insufficient funds"}
	}

	start := time.Now()
	if err := m.ledger.Buy(ctx, sess.UserID, sym, price, quantity); err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionCause(err)).Inc()
		return nil, &TradeExecutionError{Op: "buy", Err: err}
	}

	u.account.ApplyBuy(sym, price, quantity)
	u.account.Record(model.Transaction{
		ID:        uuid.New().String(),
		Type:      model.TxBuy,
		Symbol:    sym,
		Notional:  notional,
		Timestamp: time.Now().UTC(),
	})
	m.persist(ctx, u, sess.UserID)
	m.resync(ctx, u, sess.UserID)

	metrics.TradesTotal.WithLabelValues(model.TxBuy).Inc()
	metrics.TradeLatency.WithLabelValues(model.TxBuy).Observe(time.Since(start).Seconds())
	slog.Info("buy executed",
		"user", sess.UserID,
		"symbol", sym,
		"qty", quantity,
		"price", price.String(),
		"balance", u.account.Balance.String(),
	)

	return m.view(ctx, u), nil
}

// Sell validates and executes a sell. The held quantity is checked locally,
// but the server stays the final authority.
func (m *Manager) Sell(ctx context.Context, sess *session.Session, symbol string, price decimal.Decimal, quantity int64) (*model.SimulatedAccount, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "invalid symbol"}
	}
	if quantity <= 0 {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "quantity must be a positive integer"}
	}

	u := m.user(sess.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := m.ensureLoaded(ctx, u, sess.UserID); err != nil {
		return nil, err
	}

	if held := u.account.HeldQuantity(sym); quantity > held {
		metrics.TradeRejections.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: "not enough shares of " + sym + " to sell"}
	}

	start := time.Now()
	if err := m.ledger.Sell(ctx, sess.UserID, sym, quantity); err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionCause(err)).Inc()
		return nil, &TradeExecutionError{Op: "sell", Err: err}
	}

	u.account.ApplySell(sym, price, quantity)
	u.account.Record(model.Transaction{
		ID:        uuid.New().String(),
		Type:      model.TxSell,
		Symbol:    sym,
		Notional:  price.Mul(decimal.NewFromInt(quantity)),
		Timestamp: time.Now().UTC(),
	})
	m.persist(ctx, u, sess.UserID)
	m.resync(ctx, u, sess.UserID)

	metrics.TradesTotal.WithLabelValues(model.TxSell).Inc()
	metrics.TradeLatency.WithLabelValues(model.TxSell).Observe(time.Since(start).Seconds())
	slog.Info("sell executed",
		"user", sess.UserID,
		"symbol", sym,
		"qty", quantity,
		"price", price.String(),
		"balance", u.account.Balance.String(),
	)

	return m.view(ctx, u), nil
}

// Remove stops tracking a symbol in the simulated portfolio. The balance is
// not settled: removal is administrative, not a sale.
func (m *Manager) Remove(ctx context.Context, sess *session.Session, symbol string) (*model.SimulatedAccount, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, &ValidationError{Reason: "invalid symbol"}
	}

	u := m.user(sess.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := m.ensureLoaded(ctx, u, sess.UserID); err != nil {
		return nil, err
	}

	if err := m.ledger.RemoveSimulated(ctx, sess.UserID, sym); err != nil {
		return nil, &TradeExecutionError{Op: "remove", Err: err}
	}

	u.account.RemoveHolding(sym)
	m.persist(ctx, u, sess.UserID)

	slog.Info("holding removed", "user", sess.UserID, "symbol", sym)
	return m.view(ctx, u), nil
}

// Reset restores the account to its defaults: remote reset first, then the
// mirror is cleared and the next simulated-mode entry is forced to reload
// from the remote ledger. A failed remote reset aborts before any local
// clearing so stale local state is never silently kept.
func (m *Manager) Reset(ctx context.Context, sess *session.Session) error {
	u := m.user(sess.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := m.ledger.Reset(ctx, sess.UserID); err != nil {
		return &TradeExecutionError{Op: "reset", Err: err}
	}

	if err := m.mirror.Clear(ctx, sess.UserID); err != nil {
		// The clear was attempted; the stale-reload flag below keeps a
		// lingering snapshot from being trusted.
		slog.Warn("mirror clear failed after reset", "user", sess.UserID, "err", err)
	}

	u.account = model.NewSimulatedAccount()
	u.loaded = true
	u.forceReload = true

	slog.Info("simulated account reset", "user", sess.UserID)
	return nil
}

// ReplayHoldings pushes the mirrored holdings into the remote ledger as a
// sequence of buy calls at each holding's average price. The replay is
// at-least-once; deduplication on repeated identical buys is the remote
// ledger's responsibility. Individual failures are logged, not fatal.
func (m *Manager) ReplayHoldings(ctx context.Context, sess *session.Session) {
	snapshot, ok, err := m.mirror.Load(ctx, sess.UserID)
	if err != nil || !ok {
		return
	}

	for _, h := range snapshot.Holdings {
		if err := m.ledger.Buy(ctx, sess.UserID, h.Symbol, h.AveragePrice, h.Quantity); err != nil {
			slog.Warn("holding replay failed", "user", sess.UserID, "symbol", h.Symbol, "err", err)
			continue
		}
		metrics.ReplayedHoldings.Inc()
	}
}

// persist rewrites the mirror snapshot. Mirror failures degrade durability,
// not correctness, so they are logged and swallowed. Caller holds u.mu.
func (m *Manager) persist(ctx context.Context, u *userState, userID string) {
	if err := m.mirror.Save(ctx, userID, u.account); err != nil {
		slog.Warn("mirror save failed", "user", userID, "err", err)
	}
}

// resync re-fetches the authoritative holdings after a trade. A failed
// resync keeps the locally computed holdings, which the next reconciliation
// repairs. Caller holds u.mu.
func (m *Manager) resync(ctx context.Context, u *userState, userID string) {
	holdings, err := m.ledger.GetSimulatedPortfolio(ctx, userID)
	if err != nil {
		slog.Warn("post-trade resync failed", "user", userID, "err", err)
		return
	}
	u.account.Holdings = holdings
	u.account.Normalize()
	m.persist(ctx, u, userID)
}

// view clones the working account and attaches current prices. Caller holds u.mu.
func (m *Manager) view(ctx context.Context, u *userState) *model.SimulatedAccount {
	c := u.account.Clone()
	c.Holdings = m.quotes.AttachPrices(ctx, c.Holdings)
	return c
}

func rejectionCause(err error) string {
	if upstream.IsRejection(err) {
		return "rejected"
	}
	return "transport"
}
