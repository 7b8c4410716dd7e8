package listener

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/orderbook"
	"github.com/tathienbao/tradecore/internal/types"
)

// RandomWalkConfig configures a geometric Brownian motion price feed.
type RandomWalkConfig struct {
	StartPrice decimal.Decimal
	Drift      float64 // annualized
	Volatility float64 // annualized
	TimeUnit   time.Duration

	// Synthetic book around the walk price.
	Spread    float64 // relative half-spread
	Levels    int
	LevelSize decimal.Decimal

	Seed uint64
}

// DefaultRandomWalkConfig returns a calm feed with a five-level book.
func DefaultRandomWalkConfig() RandomWalkConfig {
	return RandomWalkConfig{
		StartPrice: decimal.NewFromInt(100),
		Drift:      0,
		Volatility: 0.5,
		TimeUnit:   360 * 24 * time.Hour,
		Spread:     0.0005,
		Levels:     5,
		LevelSize:  decimal.NewFromInt(1),
		Seed:       1,
	}
}

// Validate checks the configuration.
func (c RandomWalkConfig) Validate() error {
	if !c.StartPrice.IsPositive() {
		return fmt.Errorf("%w: start price must be positive", types.ErrInvalidConfig)
	}
	if c.Volatility < 0 || c.Spread < 0 || c.Spread >= 1 {
		return fmt.Errorf("%w: volatility and spread must be non-negative, spread below 1", types.ErrInvalidConfig)
	}
	if c.TimeUnit <= 0 || c.Levels <= 0 || !c.LevelSize.IsPositive() {
		return fmt.Errorf("%w: time unit, levels and level size must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// RandomWalk is a paper feed whose price follows a geometric random walk.
type RandomWalk struct {
	bookView
	market market.Market
	cfg    RandomWalkConfig

	mu    sync.Mutex
	rng   *rand.Rand
	price float64
	last  time.Time
	now   func() time.Time
}

// NewRandomWalk creates a random walk feed for m.
func NewRandomWalk(m market.Market, cfg RandomWalkConfig) (*RandomWalk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &RandomWalk{
		bookView: bookView{book: orderbook.NewBook()},
		market:   m,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		price:    cfg.StartPrice.InexactFloat64(),
		now:      time.Now,
	}
	w.last = w.now()
	w.publish(w.last)
	return w, nil
}

func (w *RandomWalk) Market() market.Market { return w.market }

// Update advances the walk by the wall-clock time since the previous update.
func (w *RandomWalk) Update(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	now := w.now()
	elapsed := now.Sub(w.last)
	w.last = now
	w.mu.Unlock()

	w.Step(elapsed)
	return nil
}

// Step advances the walk by elapsed and republishes the book.
func (w *RandomWalk) Step(elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if elapsed > 0 {
		dt := float64(elapsed) / float64(w.cfg.TimeUnit)
		drift := (w.cfg.Drift - w.cfg.Volatility*w.cfg.Volatility/2) * dt
		shock := w.cfg.Volatility * math.Sqrt(dt) * w.rng.NormFloat64()
		w.price *= math.Exp(drift + shock)
	}
	w.publish(w.now())
}

// publish rebuilds the synthetic book around the current price. Caller holds mu.
func (w *RandomWalk) publish(ts time.Time) {
	bids := make([]orderbook.Level, 0, w.cfg.Levels)
	asks := make([]orderbook.Level, 0, w.cfg.Levels)

	for i := 1; i <= w.cfg.Levels; i++ {
		offset := w.cfg.Spread * float64(i)
		bids = append(bids, orderbook.Level{
			Price: decimal.NewFromFloat(w.price * (1 - offset)),
			Size:  w.cfg.LevelSize,
		})
		asks = append(asks, orderbook.Level{
			Price: decimal.NewFromFloat(w.price * (1 + offset)),
			Size:  w.cfg.LevelSize,
		})
	}
	w.book.Update(bids, asks, ts)
}

// CurrentPrice returns the walk price.
func (w *RandomWalk) CurrentPrice() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return decimal.NewFromFloat(w.price)
}
