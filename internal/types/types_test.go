package types

import "testing"

// TestSide_String tests Side string conversion.
func TestSide_String(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{SideLong, "LONG"},
		{SideShort, "SHORT"},
		{SideFlat, "FLAT"},
		{Side(99), "FLAT"}, // Unknown defaults to FLAT
	}

	for _, tt := range tests {
		got := tt.side.String()
		if got != tt.want {
			t.Errorf("Side(%d).String() = %s, want %s", tt.side, got, tt.want)
		}
	}
}

// TestSide_Opposite tests direction flip.
func TestSide_Opposite(t *testing.T) {
	tests := []struct {
		side Side
		want Side
	}{
		{SideLong, SideShort},
		{SideShort, SideLong},
		{SideFlat, SideFlat},
	}

	for _, tt := range tests {
		got := tt.side.Opposite()
		if got != tt.want {
			t.Errorf("Side(%d).Opposite() = %d, want %d", tt.side, got, tt.want)
		}
	}
}

func TestSideOf(t *testing.T) {
	if SideOf(3) != SideLong || SideOf(-1) != SideShort || SideOf(0) != SideFlat {
		t.Error("SideOf did not map signs to sides")
	}
}

// TestOrderStatus_String tests status string conversion.
func TestOrderStatus_String(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   string
	}{
		{OrderStatusCreated, "CREATED"},
		{OrderStatusPending, "PENDING"},
		{OrderStatusPartialFill, "PARTIAL_FILL"},
		{OrderStatusFilled, "FILLED"},
		{OrderStatusCancelled, "CANCELLED"},
		{OrderStatus(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("OrderStatus(%d).String() = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestOrderStatus_IsFinal(t *testing.T) {
	final := map[OrderStatus]bool{
		OrderStatusCreated:     false,
		OrderStatusPending:     false,
		OrderStatusPartialFill: false,
		OrderStatusFilled:      true,
		OrderStatusCancelled:   true,
	}

	for status, want := range final {
		if got := status.IsFinal(); got != want {
			t.Errorf("%s.IsFinal() = %v, want %v", status, got, want)
		}
	}
}

func TestAdvanceState_String(t *testing.T) {
	tests := []struct {
		state AdvanceState
		want  string
	}{
		{AdvanceInactive, "INACTIVE"},
		{AdvanceActivated, "ACTIVATED"},
		{AdvanceTriggered, "TRIGGERED"},
		{AdvanceFilled, "FILLED"},
		{AdvanceCancelled, "CANCELLED"},
		{AdvanceState(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("AdvanceState(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
