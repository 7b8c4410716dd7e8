package portfolio

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Portfolio is a ticker-keyed collection of balances.
// Thread-safe for concurrent access; mutation is merge-only per ticker.
type Portfolio struct {
	mu       sync.RWMutex
	balances map[string]*Balance
}

// New creates a portfolio holding the given balances.
func New(balances ...Balance) *Portfolio {
	p := &Portfolio{balances: make(map[string]*Balance)}
	for _, b := range balances {
		p.Add(b)
	}
	return p
}

// Add merges the balance into the portfolio, inserting a copy if the ticker is new.
func (p *Portfolio) Add(b Balance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(b)
}

func (p *Portfolio) addLocked(b Balance) {
	if existing, ok := p.balances[b.Ticker]; ok {
		existing.Assimilate(b)
		return
	}
	nb := NewBalance(b.Ticker, b.Size, b.EntryPrice)
	p.balances[b.Ticker] = &nb
}

// Assimilate merges every balance of other into p.
// Only p's lock is held while merging; other is read through a snapshot taken
// beforehand, so two portfolios can be merged into each other without deadlock.
func (p *Portfolio) Assimilate(other *Portfolio) {
	if other == nil || other == p {
		return
	}

	incoming := other.Snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range incoming {
		p.addLocked(b)
	}
}

// Remove drops a ticker from the portfolio.
func (p *Portfolio) Remove(ticker string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.balances, ticker)
}

// Size returns the signed size held for ticker; absent tickers have size zero.
func (p *Portfolio) Size(ticker string) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if b, ok := p.balances[ticker]; ok {
		return b.Size
	}
	return decimal.Zero
}

// Balance returns a copy of the balance held for ticker.
func (p *Portfolio) Balance(ticker string) (Balance, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, ok := p.balances[ticker]
	if !ok {
		return Balance{Ticker: ticker}, false
	}
	return *b, true
}

// Tickers returns the held tickers in sorted order.
func (p *Portfolio) Tickers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tickers := make([]string, 0, len(p.balances))
	for t := range p.balances {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Snapshot returns a copy of all balances sorted by ticker.
func (p *Portfolio) Snapshot() []Balance {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Balance, 0, len(p.balances))
	for _, b := range p.balances {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// EntryCost returns the summed entry cost of all balances.
func (p *Portfolio) EntryCost() decimal.Decimal {
	total := decimal.Zero
	for _, b := range p.Snapshot() {
		total = total.Add(b.EntryCost())
	}
	return total
}

// Value prices every balance with a known price and sums the result.
// Tickers missing from prices are ignored.
func (p *Portfolio) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, b := range p.Snapshot() {
		if price, ok := prices[b.Ticker]; ok {
			total = total.Add(b.Size.Mul(price))
		}
	}
	return total
}

// Contra returns a new portfolio with every balance negated.
func (p *Portfolio) Contra() *Portfolio {
	contra := New()
	for _, b := range p.Snapshot() {
		contra.Add(NewBalance(b.Ticker, b.Size.Neg(), b.EntryPrice))
	}
	return contra
}

func (p *Portfolio) String() string {
	parts := make([]string, 0)
	for _, b := range p.Snapshot() {
		parts = append(parts, b.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
