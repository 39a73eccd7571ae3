package domain

import "github.com/dwikikusuma/shoping-market/internal/apperr"

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return st, nil
	}
	return "", apperr.Invalid("unknown order status %q", s)
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidState error naming both statuses.
func (s Status) CheckTransition(next Status) error {
	if s.CanTransition(next) {
		return nil
	}
	return apperr.InvalidState("order cannot move from %s to %s", s, next)
}

type ItemStatus string

const (
	ItemPaid      ItemStatus = "paid"
	ItemPreparing ItemStatus = "preparing"
	ItemShipped   ItemStatus = "shipped"
	ItemDelivered ItemStatus = "delivered"
)

var itemRank = map[ItemStatus]int{
	ItemPaid:      0,
	ItemPreparing: 1,
	ItemShipped:   2,
	ItemDelivered: 3,
}

func ParseItemStatus(s string) (ItemStatus, error) {
	st := ItemStatus(s)
	if _, ok := itemRank[st]; !ok {
		return "", apperr.Invalid("unknown item status %q", s)
	}
	return st, nil
}

// CheckItemTransition allows moving forward, possibly skipping steps, and
// re-applying the current status. Moving backwards is rejected.
func (s ItemStatus) CheckItemTransition(next ItemStatus) error {
	if itemRank[next] < itemRank[s] {
		return apperr.InvalidState("item cannot move from %s back to %s", s, next)
	}
	return nil
}
