// Package types defines shared types used across the trading core.
package types

// Side represents the direction of a trade or position.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// SideOf returns the side implied by the sign of a signed size.
func SideOf(sign int) Side {
	switch {
	case sign > 0:
		return SideLong
	case sign < 0:
		return SideShort
	default:
		return SideFlat
	}
}

// OrderStatus represents the state of an order.
type OrderStatus int

const (
	OrderStatusCreated OrderStatus = iota
	OrderStatusPending
	OrderStatusPartialFill
	OrderStatusFilled
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusCreated:
		return "CREATED"
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusPartialFill:
		return "PARTIAL_FILL"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the order is in a terminal state.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// AdvanceState is the lifecycle state of a conditional (advance) order.
//
//	Inactive -> Activated -> Triggered -> Filled
//	Activated|Triggered -> Cancelled
type AdvanceState int

const (
	AdvanceInactive AdvanceState = iota
	AdvanceActivated
	AdvanceTriggered
	AdvanceFilled
	AdvanceCancelled
)

func (s AdvanceState) String() string {
	switch s {
	case AdvanceInactive:
		return "INACTIVE"
	case AdvanceActivated:
		return "ACTIVATED"
	case AdvanceTriggered:
		return "TRIGGERED"
	case AdvanceFilled:
		return "FILLED"
	case AdvanceCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}
