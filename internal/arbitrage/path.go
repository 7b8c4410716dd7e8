package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/execution"
)

// PassThroughPath folds PassThrough over a cycle. It returns the terminal
// value of one origin unit net of fees and the origin size the books can
// absorb.
func PassThroughPath(path []*Node, originSize decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	value := decimal.NewFromInt(1)
	sourceSize := originSize

	var err error
	for _, node := range path {
		value, originSize, sourceSize, err = node.PassThrough(value, originSize, sourceSize)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	return value, originSize, nil
}

// ExecuteTrades places every leg in order and returns the expected ending
// size in the origin currency. Legs are not atomic: an error leaves earlier
// legs in place and the orders placed so far are returned with it.
func ExecuteTrades(ctx context.Context, path []*Node, originSize decimal.Decimal) (decimal.Decimal, []*execution.Order, error) {
	orders := make([]*execution.Order, 0, len(path))
	destSize := originSize

	for _, node := range path {
		next, order, err := node.ExecuteTrade(ctx, destSize)
		if order != nil {
			orders = append(orders, order)
		}
		if err != nil {
			return decimal.Zero, orders, err
		}
		destSize = next
	}
	return destSize, orders, nil
}
