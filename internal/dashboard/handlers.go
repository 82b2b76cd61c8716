// Package dashboard provides the HTTP surface of the portfolio engine:
// sessions, both portfolio views, simulated trading, quotes, and the
// chart-data passthroughs.
package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/account"
	"github.com/stockpulse/paper-engine/internal/model"
	"github.com/stockpulse/paper-engine/internal/quote"
	"github.com/stockpulse/paper-engine/internal/session"
	"github.com/stockpulse/paper-engine/internal/upstream"
	"github.com/stockpulse/paper-engine/internal/valuation"
)

// Service wires the dashboard handlers to the engine's components.
type Service struct {
	sessions *session.Manager
	accounts *account.Manager
	quotes   *quote.Service
	ledger   *upstream.Client
	hub      *Hub // optional; nil disables broadcasting
}

// NewService creates the dashboard service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(sessions *session.Manager, accounts *account.Manager, quotes *quote.Service, ledger *upstream.Client, hub *Hub) *Service {
	return &Service{
		sessions: sessions,
		accounts: accounts,
		quotes:   quotes,
		ledger:   ledger,
		hub:      hub,
	}
}

// Routes mounts all dashboard endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/sessions", s.CreateSession)
	r.Delete("/sessions/{sessionID}", s.EndSession)
	r.Put("/sessions/{sessionID}/mode", s.SwitchMode)

	r.Route("/sessions/{sessionID}/portfolio", func(r chi.Router) {
		r.Get("/", s.GetPortfolio)
		r.Get("/summary", s.GetSummary)
		r.Get("/transactions", s.GetTransactions)
		r.Post("/buy", s.Buy)
		r.Post("/sell", s.Sell)
		r.Post("/add", s.AddReal)
		r.Delete("/{symbol}", s.Remove)
		r.Post("/reset", s.Reset)
		r.Get("/history", s.GetHistory)
		r.Get("/sector-allocation", s.GetSectorAllocation)
	})

	r.Get("/quote/{symbol}", s.GetQuote)
}

// --- Request/Response types ---

// CreateSessionRequest is the JSON body for POST /sessions.
type CreateSessionRequest struct {
	UserID string `json:"user_id"`
}

// SwitchModeRequest is the JSON body for PUT /sessions/{sessionID}/mode.
type SwitchModeRequest struct {
	Mode session.Mode `json:"mode"`
}

// TradeRequest is the JSON body for buy and sell.
type TradeRequest struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// AddRequest is the JSON body for adding a symbol to the real portfolio.
type AddRequest struct {
	Symbol string `json:"symbol"`
}

// PortfolioResponse is the portfolio view in either mode.
type PortfolioResponse struct {
	Mode         session.Mode        `json:"mode"`
	Holdings     []model.Holding     `json:"portfolio"`
	Value        decimal.Decimal     `json:"portfolio_value"`
	Balance      *decimal.Decimal    `json:"balance,omitempty"`
	GainLoss     *valuation.GainLoss `json:"gain_loss,omitempty"`
	Transactions []model.Transaction `json:"transactions,omitempty"`
}

// --- Session handlers ---

// CreateSession handles POST /api/v1/sessions.
func (s *Service) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	sess := s.sessions.Create(req.UserID)
	slog.Info("session created", "session", sess.ID, "user", sess.UserID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sess)
}

// EndSession handles DELETE /api/v1/sessions/{sessionID}.
func (s *Service) EndSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// SwitchMode handles PUT /api/v1/sessions/{sessionID}/mode. Entering
// simulated mode reconciles the account and returns it alongside the session.
func (s *Service) SwitchMode(w http.ResponseWriter, r *http.Request) {
	var req SwitchModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode != session.ModeReal && req.Mode != session.ModeSimulated {
		writeError(w, "mode must be real or simulated", http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.SetMode(chi.URLParam(r, "sessionID"), req.Mode)
	if err != nil {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}

	resp := map[string]any{"session": sess}
	if req.Mode == session.ModeSimulated {
		acct, err := s.accounts.EnterSimulated(r.Context(), sess)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		resp["account"] = acct
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Portfolio handlers ---

// GetPortfolio handles GET .../portfolio and serves whichever view the
// session's mode selects.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if sess.Mode == session.ModeReal {
		holdings, err := s.ledger.GetRealPortfolio(r.Context(), sess.UserID)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		holdings = s.quotes.AttachPrices(r.Context(), holdings)
		writeJSON(w, PortfolioResponse{
			Mode:     session.ModeReal,
			Holdings: holdings,
			Value:    valuation.PortfolioValue(holdings),
		})
		return
	}

	acct, err := s.accounts.Account(r.Context(), sess)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	gl := valuation.ComputeGainLoss(acct.Holdings)
	writeJSON(w, PortfolioResponse{
		Mode:         session.ModeSimulated,
		Holdings:     acct.Holdings,
		Value:        valuation.PortfolioValue(acct.Holdings),
		Balance:      &acct.Balance,
		GainLoss:     &gl,
		Transactions: acct.Transactions,
	})
}

// GetSummary handles GET .../portfolio/summary: balance, value, and
// gain/loss for the simulated account, recomputed from live prices.
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	acct, err := s.accounts.Account(r.Context(), sess)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	gl := valuation.ComputeGainLoss(acct.Holdings)
	writeJSON(w, map[string]any{
		"balance":         acct.Balance,
		"portfolio_value": valuation.PortfolioValue(acct.Holdings),
		"gain_loss":       gl,
	})
}

// GetTransactions handles GET .../portfolio/transactions, newest first.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	acct, err := s.accounts.Account(r.Context(), sess)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]any{"transactions": acct.Transactions})
}

// Buy handles POST .../portfolio/buy.
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode != session.ModeSimulated {
		writeError(w, "buy is a simulated-portfolio action", http.StatusBadRequest)
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acct, err := s.accounts.Buy(r.Context(), sess, req.Symbol, req.Price, req.Quantity)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.broadcastUpdate(sess.UserID, acct, model.TxBuy, req.Symbol)
	writeJSON(w, acct)
}

// Sell handles POST .../portfolio/sell.
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode != session.ModeSimulated {
		writeError(w, "sell is a simulated-portfolio action", http.StatusBadRequest)
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acct, err := s.accounts.Sell(r.Context(), sess, req.Symbol, req.Price, req.Quantity)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.broadcastUpdate(sess.UserID, acct, model.TxSell, req.Symbol)
	writeJSON(w, acct)
}

// AddReal handles POST .../portfolio/add: start tracking a symbol in the
// real portfolio.
func (s *Service) AddReal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode != session.ModeReal {
		writeError(w, "add is a real-portfolio action", http.StatusBadRequest)
		return
	}

	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sym, err := model.NormalizeSymbol(req.Symbol)
	if err != nil {
		writeError(w, "invalid symbol", http.StatusBadRequest)
		return
	}

	if err := s.ledger.AddReal(r.Context(), sess.UserID, sym); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "symbol": sym})
}

// Remove handles DELETE .../portfolio/{symbol}. Removal stops tracking the
// symbol in the session's current mode without settling any balance; it is
// not a sell.
func (s *Service) Remove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	symbol := chi.URLParam(r, "symbol")

	if sess.Mode == session.ModeReal {
		sym, err := model.NormalizeSymbol(symbol)
		if err != nil {
			writeError(w, "invalid symbol", http.StatusBadRequest)
			return
		}
		if err := s.ledger.RemoveReal(r.Context(), sess.UserID, sym); err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "symbol": sym})
		return
	}

	acct, err := s.accounts.Remove(r.Context(), sess, symbol)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.broadcastUpdate(sess.UserID, acct, "Remove", symbol)
	writeJSON(w, acct)
}

// Reset handles POST .../portfolio/reset.
func (s *Service) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode != session.ModeSimulated {
		writeError(w, "reset is a simulated-portfolio action", http.StatusBadRequest)
		return
	}

	if err := s.accounts.Reset(r.Context(), sess); err != nil {
		s.writeFailure(w, err)
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(AccountUpdate{
			Type:    "account_reset",
			UserID:  sess.UserID,
			Balance: model.StartingBalance.String(),
			Value:   "0",
		})
	}
	writeJSON(w, map[string]any{"success": true, "balance": model.StartingBalance})
}

// GetHistory handles GET .../portfolio/history. Mirrored holdings are
// replayed into the remote ledger first so the chart reflects local state.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.accounts.ReplayHoldings(r.Context(), sess)
	history, err := s.ledger.History(r.Context(), sess.UserID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "history": history})
}

// GetSectorAllocation handles GET .../portfolio/sector-allocation, with the
// same replay-first contract as history.
func (s *Service) GetSectorAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.accounts.ReplayHoldings(r.Context(), sess)
	sectors, err := s.ledger.SectorAllocation(r.Context(), sess.UserID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "sectors": sectors})
}

// GetQuote handles GET /api/v1/quote/{symbol}.
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, q)
}

// --- Helpers ---

func (s *Service) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Service) broadcastUpdate(userID string, acct *model.SimulatedAccount, action, symbol string) {
	if s.hub == nil {
		return
	}
	gl := valuation.ComputeGainLoss(acct.Holdings)
	s.hub.Broadcast(AccountUpdate{
		Type:        "account_updated",
		UserID:      userID,
		Balance:     acct.Balance.String(),
		Value:       valuation.PortfolioValue(acct.Holdings).String(),
		GainAmount:  gl.Amount.String(),
		GainPercent: gl.Percent.String(),
		Symbol:      symbol,
		Action:      action,
	})
}

// writeFailure maps the engine's error taxonomy onto HTTP statuses:
// validation → 400, remote rejection → 422 with the server's reason,
// transport → 502.
func (s *Service) writeFailure(w http.ResponseWriter, err error) {
	var ve *account.ValidationError
	if errors.As(err, &ve) {
		writeError(w, ve.Reason, http.StatusBadRequest)
		return
	}
	if errors.Is(err, model.ErrInvalidSymbol) {
		writeError(w, "invalid symbol", http.StatusBadRequest)
		return
	}
	if upstream.IsRejection(err) {
		msg := upstream.RejectionMessage(err)
		if msg == "" {
			msg = "request rejected by ledger service"
		}
		writeError(w, msg, http.StatusUnprocessableEntity)
		return
	}
	if upstream.IsTransport(err) {
		writeError(w, "ledger service unavailable", http.StatusBadGateway)
		return
	}
	writeError(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
