package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalle-health/be-negotiations/internal/repository"
)

func itemsWithStatuses(statuses ...repository.ItemStatus) []*repository.NegotiationItem {
	items := make([]*repository.NegotiationItem, 0, len(statuses))
	for i, st := range statuses {
		items = append(items, &repository.NegotiationItem{
			ID:     string(rune('a' + i)),
			Status: st,
		})
	}
	return items
}

func TestAggregateItems(t *testing.T) {
	tests := []struct {
		name           string
		statuses       []repository.ItemStatus
		wantClass      OutcomeClass
		wantUnresolved int
	}{
		{
			name:      "empty set has nothing to approve",
			statuses:  nil,
			wantClass: FullReject,
		},
		{
			name:      "all approved",
			statuses:  []repository.ItemStatus{repository.ItemApproved, repository.ItemApproved},
			wantClass: FullApprove,
		},
		{
			name:      "all rejected",
			statuses:  []repository.ItemStatus{repository.ItemRejected, repository.ItemRejected},
			wantClass: FullReject,
		},
		{
			name:           "approved and rejected is partial",
			statuses:       []repository.ItemStatus{repository.ItemApproved, repository.ItemRejected},
			wantClass:      Partial,
			wantUnresolved: 1,
		},
		{
			name:           "approved and pending is partial",
			statuses:       []repository.ItemStatus{repository.ItemApproved, repository.ItemPending},
			wantClass:      Partial,
			wantUnresolved: 1,
		},
		{
			name:           "counter offer never folds into full approval",
			statuses:       []repository.ItemStatus{repository.ItemApproved, repository.ItemCounterOffered},
			wantClass:      Partial,
			wantUnresolved: 1,
		},
		{
			name:           "rejected and pending is partial with both unresolved",
			statuses:       []repository.ItemStatus{repository.ItemRejected, repository.ItemPending},
			wantClass:      Partial,
			wantUnresolved: 2,
		},
		{
			name:           "three-way mix",
			statuses:       []repository.ItemStatus{repository.ItemApproved, repository.ItemRejected, repository.ItemPending},
			wantClass:      Partial,
			wantUnresolved: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := AggregateItems(itemsWithStatuses(tt.statuses...))

			assert.Equal(t, tt.wantClass, agg.Class)
			if tt.wantClass == Partial {
				assert.Len(t, agg.Unresolved, tt.wantUnresolved)
				for _, item := range agg.Unresolved {
					assert.NotEqual(t, repository.ItemApproved, item.Status)
				}
			}
		})
	}
}
