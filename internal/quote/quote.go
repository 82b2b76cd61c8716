// Package quote resolves ticker symbols to current prices.
//
// Price lookups must never block the rest of the dashboard: an unreachable
// quote source yields a zero price, not an error. A reachable source that
// returns garbage is different — that is a rejection, and dependent values
// are withheld rather than computed from a corrupt number.
package quote

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/stockpulse/paper-engine/internal/metrics"
	"github.com/stockpulse/paper-engine/internal/model"
	"github.com/stockpulse/paper-engine/internal/upstream"
)

// Source is the slice of the upstream client the quote service needs.
type Source interface {
	GetQuote(ctx context.Context, symbol string) (*upstream.Quote, error)
}

// Service looks up quotes with a short-TTL read cache in front of the
// upstream quote endpoint.
type Service struct {
	source Source
	cache  *gocache.Cache
}

// NewService creates a quote service caching quotes for ttl.
func NewService(source Source, ttl time.Duration) *Service {
	return &Service{
		source: source,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// GetQuote resolves symbol to its current quote. When the source is
// unreachable the quote comes back with a zero price and a nil error; a
// malformed quote surfaces as a RemoteRejection.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*upstream.Quote, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(sym); ok {
		metrics.QuoteLookups.WithLabelValues("cache").Inc()
		q := cached.(upstream.Quote)
		return &q, nil
	}

	q, err := s.source.GetQuote(ctx, sym)
	if err != nil {
		if upstream.IsTransport(err) {
			metrics.QuoteLookups.WithLabelValues("unreachable").Inc()
			slog.Warn("quote source unreachable", "symbol", sym, "err", err)
			zero := decimal.Zero
			return &upstream.Quote{Symbol: sym, Price: &zero}, nil
		}
		metrics.QuoteLookups.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.QuoteLookups.WithLabelValues("remote").Inc()
	s.cache.SetDefault(sym, *q)
	return q, nil
}

// GetPrice resolves symbol to its current price with GetQuote's semantics.
func (s *Service) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return *q.Price, nil
}

// AttachPrices fills CurrentPrice on every holding. Unknown prices stay zero
// so one dead symbol never hides the rest of the portfolio.
func (s *Service) AttachPrices(ctx context.Context, holdings []model.Holding) []model.Holding {
	out := make([]model.Holding, len(holdings))
	for i, h := range holdings {
		price, err := s.GetPrice(ctx, h.Symbol)
		if err != nil {
			slog.Warn("skipping price for holding", "symbol", h.Symbol, "err", err)
			price = decimal.Zero
		}
		h.CurrentPrice = price
		out[i] = h
	}
	return out
}
