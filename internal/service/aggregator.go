package service

import "github.com/vitalle-health/be-negotiations/internal/repository"

// OutcomeClass is the aggregate classification of a negotiation's item
// decisions.
type OutcomeClass int

const (
	// FullApprove: every item approved.
	FullApprove OutcomeClass = iota
	// FullReject: every item rejected.
	FullReject
	// Partial: mixed outcomes; unresolved items fork into a new cycle.
	Partial
)

// Aggregation carries the classification and, for partial outcomes, the
// items that remain unresolved. Counter-offered items are always unresolved:
// the provider still has to accept the counter value, so they never fold
// into a full approval.
type Aggregation struct {
	Class      OutcomeClass
	Unresolved []*repository.NegotiationItem
}

// AggregateItems classifies the post-decision item set. An empty set has
// nothing to approve and classifies as a full rejection.
func AggregateItems(items []*repository.NegotiationItem) Aggregation {
	if len(items) == 0 {
		return Aggregation{Class: FullReject}
	}

	approved, rejected := 0, 0
	unresolved := make([]*repository.NegotiationItem, 0)

	for _, item := range items {
		switch item.Status {
		case repository.ItemApproved:
			approved++
		case repository.ItemRejected:
			rejected++
			unresolved = append(unresolved, item)
		default: // pending, counter_offered
			unresolved = append(unresolved, item)
		}
	}

	switch {
	case approved == len(items):
		return Aggregation{Class: FullApprove}
	case rejected == len(items):
		return Aggregation{Class: FullReject}
	default:
		return Aggregation{Class: Partial, Unresolved: unresolved}
	}
}
