// Package upstream is the HTTP client for the remote ledger/quote service:
// the authoritative ledger for both portfolio modes and the quote source.
//
// Failures map onto two error kinds. TransportError: the service could not
// be reached or gave an unstructured non-2xx answer. RemoteRejection: the
// service answered and said no. Callers rely on this split — rejections are
// surfaced verbatim to the user, transport errors generically.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/stockpulse/paper-engine/internal/model"
)

// Client talks to the remote ledger/quote service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	quoteLim   *rate.Limiter
}

// New creates a client for the service at baseURL. quoteRate limits quote
// lookups per second; zero disables limiting.
func New(baseURL string, timeout time.Duration, quoteRate float64) *Client {
	lim := rate.NewLimiter(rate.Inf, 1)
	if quoteRate > 0 {
		lim = rate.NewLimiter(rate.Limit(quoteRate), int(quoteRate)+1)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		quoteLim:   lim,
	}
}

// Quote is the body of GET /api/stockprice/{symbol}.
type Quote struct {
	Symbol        string           `json:"ticker"`
	Price         *decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal  `json:"change_percent"`
}

// statusBody is the envelope most ledger endpoints answer with.
type statusBody struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (b statusBody) reason() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Detail
}

type simPortfolioResponse struct {
	statusBody
	Portfolio []model.Holding `json:"portfolio"`
}

type realPortfolioResponse struct {
	statusBody
	Portfolio []model.Holding `json:"portfolio"`
}

// HistoryPoint is one day of portfolio value from the history endpoint.
type HistoryPoint struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

type historyResponse struct {
	statusBody
	History []HistoryPoint `json:"history"`
}

// SectorSlice is one sector's share from the allocation endpoint.
type SectorSlice struct {
	Sector string          `json:"sector"`
	Value  decimal.Decimal `json:"value"`
}

type sectorResponse struct {
	statusBody
	Sectors []SectorSlice `json:"sectors"`
}

// GetQuote resolves a symbol to its current quote. A missing or unparsable
// price is a RemoteRejection: callers must not see a corrupt number.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := c.quoteLim.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "quote", Err: err}
	}

	var q Quote
	if err := c.do(ctx, http.MethodGet, "/api/stockprice/"+symbol, nil, &q, "quote"); err != nil {
		return nil, err
	}
	if q.Price == nil {
		return nil, &RemoteRejection{Op: "quote", Message: "no price for " + symbol}
	}
	return &q, nil
}

// GetSimulatedPortfolio fetches the authoritative simulated holdings for a user.
// An absent remote account comes back as an empty holding list, not an error.
func (c *Client) GetSimulatedPortfolio(ctx context.Context, userID string) ([]model.Holding, error) {
	var resp simPortfolioResponse
	if err := c.do(ctx, http.MethodGet, "/api/simulated-portfolio/"+userID, nil, &resp, "get simulated portfolio"); err != nil {
		return nil, err
	}
	if resp.Portfolio == nil {
		resp.Portfolio = []model.Holding{}
	}
	return resp.Portfolio, nil
}

// GetRealPortfolio fetches the tracked symbols of the real portfolio.
func (c *Client) GetRealPortfolio(ctx context.Context, userID string) ([]model.Holding, error) {
	var resp realPortfolioResponse
	if err := c.do(ctx, http.MethodGet, "/api/portfolio/"+userID, nil, &resp, "get portfolio"); err != nil {
		return nil, err
	}
	if resp.Portfolio == nil {
		resp.Portfolio = []model.Holding{}
	}
	return resp.Portfolio, nil
}

// Buy records a simulated buy on the remote ledger.
func (c *Client) Buy(ctx context.Context, userID, symbol string, price decimal.Decimal, quantity int64) error {
	body := map[string]any{
		"user_id":  userID,
		"symbol":   symbol,
		"price":    price,
		"quantity": quantity,
	}
	var resp statusBody
	return c.do(ctx, http.MethodPost, "/api/simulated-portfolio/buy", body, &resp, "buy")
}

// Sell records a simulated sell on the remote ledger. The server is the
// final authority on the held quantity.
func (c *Client) Sell(ctx context.Context, userID, symbol string, quantity int64) error {
	body := map[string]any{
		"user_id":  userID,
		"symbol":   symbol,
		"quantity": quantity,
	}
	var resp statusBody
	return c.do(ctx, http.MethodPost, "/api/simulated-portfolio/sell", body, &resp, "sell")
}

// Reset clears the remote simulated ledger for a user.
func (c *Client) Reset(ctx context.Context, userID string) error {
	body := map[string]any{"user_id": userID}
	var resp statusBody
	return c.do(ctx, http.MethodPost, "/api/simulated-portfolio/reset", body, &resp, "reset")
}

// RemoveSimulated stops tracking a symbol in the simulated portfolio.
func (c *Client) RemoveSimulated(ctx context.Context, userID, symbol string) error {
	body := map[string]any{"user_id": userID, "symbol": symbol}
	var resp statusBody
	return c.do(ctx, http.MethodDelete, "/api/simulated-portfolio/remove", body, &resp, "remove simulated")
}

// RemoveReal stops tracking a symbol in the real portfolio.
func (c *Client) RemoveReal(ctx context.Context, userID, symbol string) error {
	body := map[string]any{"user_id": userID, "symbol": symbol}
	var resp statusBody
	return c.do(ctx, http.MethodDelete, "/api/portfolio/remove", body, &resp, "remove")
}

// AddReal starts tracking a symbol in the real portfolio.
func (c *Client) AddReal(ctx context.Context, userID, symbol string) error {
	body := map[string]any{"user_id": userID, "symbol": symbol}
	var resp statusBody
	return c.do(ctx, http.MethodPost, "/api/portfolio/add", body, &resp, "add")
}

// History fetches the daily portfolio value series.
func (c *Client) History(ctx context.Context, userID string) ([]HistoryPoint, error) {
	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, "/api/portfolio/history/"+userID, nil, &resp, "history"); err != nil {
		return nil, err
	}
	if resp.History == nil {
		resp.History = []HistoryPoint{}
	}
	return resp.History, nil
}

// SectorAllocation fetches the per-sector holdings breakdown.
func (c *Client) SectorAllocation(ctx context.Context, userID string) ([]SectorSlice, error) {
	var resp sectorResponse
	if err := c.do(ctx, http.MethodGet, "/api/portfolio/sector-allocation/"+userID, nil, &resp, "sector allocation"); err != nil {
		return nil, err
	}
	if resp.Sectors == nil {
		resp.Sectors = []SectorSlice{}
	}
	return resp.Sectors, nil
}

// do issues one request and decodes the response into out. The success flag
// and status code are folded into the error taxonomy here so the methods
// above stay declarative.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, op string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	// Decode the envelope first so a structured refusal wins over the
	// status code.
	var status statusBody
	structured := json.Unmarshal(data, &status) == nil

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if structured && (status.reason() != "" || status.Success != nil) {
			return &RemoteRejection{Op: op, Message: status.reason()}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if structured && status.Success != nil && !*status.Success {
		return &RemoteRejection{Op: op, Message: status.reason()}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &RemoteRejection{Op: op, Message: "malformed response"}
		}
	}
	return nil
}
