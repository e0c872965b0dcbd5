package core_test

import (
	"testing"

	"stockroom/internal/core"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to core.OrderStatus
		allowed  bool
	}{
		{core.OrderPending, core.OrderProcessing, true},
		{core.OrderPending, core.OrderCanceled, true},
		{core.OrderPending, core.OrderShipped, false},
		{core.OrderPending, core.OrderDelivered, false},
		{core.OrderProcessing, core.OrderShipped, true},
		{core.OrderProcessing, core.OrderCanceled, true},
		{core.OrderProcessing, core.OrderPending, false},
		{core.OrderShipped, core.OrderDelivered, true},
		{core.OrderShipped, core.OrderCanceled, true},
		{core.OrderShipped, core.OrderProcessing, false},
		{core.OrderDelivered, core.OrderCanceled, false},
		{core.OrderDelivered, core.OrderShipped, false},
		{core.OrderCanceled, core.OrderPending, false},
		{core.OrderCanceled, core.OrderProcessing, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestOrderStatus_NoSelfTransitions(t *testing.T) {
	for _, s := range []core.OrderStatus{
		core.OrderPending, core.OrderProcessing, core.OrderShipped,
		core.OrderDelivered, core.OrderCanceled,
	} {
		if s.CanTransition(s) {
			t.Errorf("%s -> %s must not be allowed", s, s)
		}
	}
}

func TestValidOrderStatus(t *testing.T) {
	if !core.ValidOrderStatus(core.OrderPending) {
		t.Error("PENDING should be a valid status")
	}
	if core.ValidOrderStatus("SHINY") {
		t.Error("SHINY should not be a valid status")
	}
}

func TestValidPOStatus(t *testing.T) {
	if !core.ValidPOStatus(core.POSubmitted) {
		t.Error("SUBMITTED should be a valid status")
	}
	if core.ValidPOStatus("PENDING") {
		t.Error("PENDING is an order status, not a purchase order status")
	}
}

func TestPOStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to core.POStatus
		allowed  bool
	}{
		{core.PODraft, core.POSubmitted, true},
		{core.PODraft, core.POCanceled, true},
		{core.PODraft, core.POReceived, false},
		{core.POSubmitted, core.POReceived, true},
		{core.POSubmitted, core.POCanceled, true},
		{core.POSubmitted, core.PODraft, false},
		{core.POReceived, core.POCanceled, false},
		{core.POCanceled, core.POSubmitted, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestTaxOn_Rounding(t *testing.T) {
	cases := []struct {
		subtotal int64
		rate     string
		want     int64
	}{
		{10000, "10", 1000},
		{999, "10", 100},    // 99.9 rounds up
		{1005, "7.5", 75},   // 75.375 rounds down
		{10, "5", 1},        // 0.5 rounds half away from zero
		{-10, "5", -1},      // symmetric for negative amounts
		{10000, "0", 0},
	}
	for _, c := range cases {
		rate, err := decimal.NewFromString(c.rate)
		if err != nil {
			t.Fatalf("bad rate %q: %v", c.rate, err)
		}
		if got := core.TaxOn(c.subtotal, rate); got != c.want {
			t.Errorf("TaxOn(%d, %s) = %d, want %d", c.subtotal, c.rate, got, c.want)
		}
	}
}

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10.4", 10},
		{"10.5", 11},
		{"-10.5", -11},
		{"0", 0},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", c.in, err)
		}
		if got := core.RoundMoney(d); got != c.want {
			t.Errorf("RoundMoney(%s) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	err := core.E(core.KindInsufficientStock, "not enough of %s", "WID-A")
	if !core.IsKind(err, core.KindInsufficientStock) {
		t.Error("IsKind should match the error's own kind")
	}
	if core.IsKind(err, core.KindNotFound) {
		t.Error("IsKind should not match a different kind")
	}
	if core.KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
	if err.Error() != "not enough of WID-A" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
