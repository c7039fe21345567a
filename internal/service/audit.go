package service

import (
	"reflect"

	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// DiffAuditValues computes the field-level diff between two snapshots of an
// aggregate's auditable values. Only changed fields appear; an empty map
// means no audit record should be written.
func DiffAuditValues(before, after map[string]any) map[string]repository.FieldChange {
	changes := make(map[string]repository.FieldChange)

	for field, afterVal := range after {
		beforeVal, existed := before[field]
		if !existed {
			changes[field] = repository.FieldChange{Before: nil, After: afterVal}
			continue
		}
		if !reflect.DeepEqual(beforeVal, afterVal) {
			changes[field] = repository.FieldChange{Before: beforeVal, After: afterVal}
		}
	}

	for field, beforeVal := range before {
		if _, still := after[field]; !still {
			changes[field] = repository.FieldChange{Before: beforeVal, After: nil}
		}
	}

	return changes
}

// buildAuditEntry wraps a non-empty diff into an entry, or returns nil so
// empty diffs produce no record.
func buildAuditEntry(negotiationID, actorID, action string, before, after map[string]any) *repository.AuditEntry {
	changes := DiffAuditValues(before, after)
	if len(changes) == 0 {
		return nil
	}
	return &repository.AuditEntry{
		NegotiationID: negotiationID,
		ActorID:       actorID,
		Action:        action,
		Changes:       changes,
	}
}
