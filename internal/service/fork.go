package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// BuildForkPlan prepares the successor negotiation for a partially resolved
// cycle: a fresh draft carrying the original's metadata, linked through
// parent_negotiation_id, taking ownership of the unresolved items. The plan
// is applied inside the same transaction as the triggering approval, so
// original and successor commit together or not at all. Lineage chains of
// arbitrary depth are allowed: a fork of a fork keeps pointing one level up.
func BuildForkPlan(original *repository.Negotiation, unresolved []*repository.NegotiationItem, actor Actor) *repository.ForkPlan {
	forkID := uuid.New().String()
	parentID := original.ID

	successor := &repository.Negotiation{
		ID:                  forkID,
		Title:               original.Title,
		Description:         original.Description,
		Status:              repository.StatusDraft,
		CreatorID:           original.CreatorID,
		ParentNegotiationID: &parentID,
	}

	itemIDs := make([]string, 0, len(unresolved))
	for _, item := range unresolved {
		itemIDs = append(itemIDs, item.ID)
	}

	notes := fmt.Sprintf("forked from negotiation %s with %d unresolved item(s)", parentID, len(itemIDs))

	return &repository.ForkPlan{
		Negotiation: successor,
		ItemIDs:     itemIDs,
		History: &repository.ApprovalHistoryEntry{
			NegotiationID: forkID,
			Action:        repository.ActionFork,
			Status:        repository.StatusDraft,
			UserID:        actor.ID,
			Notes:         &notes,
		},
		// The successor is a fresh negotiation; its creation is audited like
		// any other, with an empty before-snapshot.
		Audit: buildAuditEntry(forkID, actor.ID, repository.ActionFork, map[string]any{}, successor.AuditValues()),
	}
}
