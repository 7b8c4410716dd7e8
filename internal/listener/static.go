package listener

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/orderbook"
)

// Static is a listener whose prices are set by the caller.
// Used for paper trading, replay and tests.
type Static struct {
	bookView
	market market.Market

	mu    sync.RWMutex
	price decimal.Decimal
}

// NewStatic creates a listener for m with an empty book.
func NewStatic(m market.Market) *Static {
	return &Static{
		bookView: bookView{book: orderbook.NewBook()},
		market:   m,
	}
}

func (s *Static) Market() market.Market { return s.market }

// Update is a no-op; prices change only through the setters.
func (s *Static) Update(ctx context.Context) error {
	return ctx.Err()
}

// SetPrice sets the last traded price.
func (s *Static) SetPrice(price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = price
}

// SetBook replaces the order book snapshot.
func (s *Static) SetBook(bids, asks []orderbook.Level) {
	s.book.Update(bids, asks, time.Now())
}

// SetTopOfBook replaces the book with a single level on each side.
func (s *Static) SetTopOfBook(bid, bidSize, ask, askSize decimal.Decimal) {
	s.SetBook(
		[]orderbook.Level{{Price: bid, Size: bidSize}},
		[]orderbook.Level{{Price: ask, Size: askSize}},
	)
}

// CurrentPrice returns the last set price, falling back to the book mid.
func (s *Static) CurrentPrice() decimal.Decimal {
	s.mu.RLock()
	price := s.price
	s.mu.RUnlock()

	if !price.IsZero() {
		return price
	}
	mid, _ := s.book.Mid()
	return mid
}
