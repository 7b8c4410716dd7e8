package orderbook

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lvl(price, size string) Level {
	return Level{Price: d(price), Size: d(size)}
}

func newTestBook(t *testing.T) *Book {
	t.Helper()
	b := NewBook()
	b.Update(
		[]Level{lvl("99", "1"), lvl("100", "2"), lvl("98", "5")},
		[]Level{lvl("102", "3"), lvl("101", "1"), lvl("0", "9")},
		time.Unix(1000, 0),
	)
	return b
}

func TestBook_BestLevels(t *testing.T) {
	b := newTestBook(t)

	bid, ok := b.BestBid()
	if !ok || !bid.Price.Equal(d("100")) {
		t.Errorf("BestBid = %v, %v; want 100", bid.Price, ok)
	}
	ask, ok := b.BestAsk()
	if !ok || !ask.Price.Equal(d("101")) {
		t.Errorf("BestAsk = %v, %v; want 101", ask.Price, ok)
	}
	mid, _ := b.Mid()
	if !mid.Equal(d("100.5")) {
		t.Errorf("Mid = %s, want 100.5", mid)
	}
	if len(b.Asks()) != 2 {
		t.Errorf("zero-price level should be dropped, got %d asks", len(b.Asks()))
	}
}

func TestBook_Sweep(t *testing.T) {
	b := newTestBook(t)

	tests := []struct {
		name    string
		buy     bool
		size    string
		want    string
		wantErr error
	}{
		{"buy within best level", true, "1", "101", nil},
		{"buy across levels", true, "2", "101.5", nil},
		{"sell across levels", false, "4", "99.25", nil},
		{"sell zero size returns best", false, "0", "100", nil},
		{"sell negative size uses magnitude", false, "-2", "100", nil},
		{"buy beyond depth", true, "10", "0", types.ErrInsufficientLiquidity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got decimal.Decimal
			var err error
			if tt.buy {
				got, err = b.MarketBuyPrice(d(tt.size))
			} else {
				got, err = b.MarketSellPrice(d(tt.size))
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("price = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBook_EmptySide(t *testing.T) {
	b := NewBook()

	if _, ok := b.BestBid(); ok {
		t.Error("empty book should have no bid")
	}
	if _, err := b.MarketBuyPrice(d("1")); !errors.Is(err, types.ErrDataUnavailable) {
		t.Errorf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestBook_TimestampStrictlyIncreases(t *testing.T) {
	b := NewBook()
	ts := time.Unix(5000, 0)

	b.Update(nil, nil, ts)
	first := b.Timestamp()
	b.Update(nil, nil, ts)
	second := b.Timestamp()
	b.Update(nil, nil, ts.Add(-time.Second))
	third := b.Timestamp()

	if !second.After(first) || !third.After(second) {
		t.Errorf("timestamps not increasing: %v, %v, %v", first, second, third)
	}
}
