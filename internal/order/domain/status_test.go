package domain

import (
	"errors"
	"testing"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusShipped, false},
		{StatusConfirmed, StatusShipped, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusDelivered, StatusRefunded, true},
		{StatusCancelled, StatusShipped, false},
		{StatusRefunded, StatusShipped, false},
		{StatusRefunded, StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.ok {
				t.Fatalf("CanTransition = %v, want %v", got, tt.ok)
			}
			err := tt.from.CheckTransition(tt.to)
			if tt.ok && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !tt.ok && !errors.Is(err, apperr.ErrInvalidState) {
				t.Fatalf("want InvalidState, got %v", err)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusRefunded} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if StatusDelivered.Terminal() {
		t.Fatal("DELIVERED can still be refunded")
	}
}

func TestItemTransitions(t *testing.T) {
	if err := ItemPaid.CheckItemTransition(ItemShipped); err != nil {
		t.Fatalf("forward skip should be allowed: %v", err)
	}
	if err := ItemDelivered.CheckItemTransition(ItemDelivered); err != nil {
		t.Fatalf("re-applying delivered should be allowed: %v", err)
	}
	if err := ItemShipped.CheckItemTransition(ItemPreparing); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("backwards should be InvalidState, got %v", err)
	}
	if _, err := ParseItemStatus("lost"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}
