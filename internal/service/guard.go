package service

import (
	"fmt"

	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// Operation names a guarded state-changing operation.
type Operation string

const (
	OpSubmit   Operation = "submit"
	OpDecide   Operation = "decide"
	OpRollback Operation = "rollback"
	OpCancel   Operation = "cancel"
)

// requiredCapability maps each operation to the capability it needs.
var requiredCapability = map[Operation]string{
	OpSubmit:   CapManage,
	OpDecide:   CapDecide,
	OpRollback: CapDecide,
	OpCancel:   CapManage,
}

// Authorize runs the ordered precondition checks for a negotiation-targeted
// operation. The order is fixed so error codes are deterministic:
// capability, then self-action, then state. Existence (NotFound) is checked
// by the caller's fetch before the guard runs.
func Authorize(n *repository.Negotiation, actor Actor, op Operation) error {
	capability, ok := requiredCapability[op]
	if !ok || !actor.Has(capability) {
		return errors.Forbidden(fmt.Sprintf("missing capability for %s", op))
	}

	if op == OpDecide && actor.ID == n.CreatorID && !actor.Has(CapOverride) {
		return errors.Forbidden("cannot act on own negotiation")
	}

	switch op {
	case OpSubmit:
		if n.Status != repository.StatusDraft {
			return errors.InvalidState(fmt.Sprintf("cannot submit negotiation with status %q", n.Status))
		}
	case OpDecide:
		if n.ApprovalLevel == nil || *n.ApprovalLevel != repository.LevelPendingApproval {
			return errors.InvalidState(fmt.Sprintf("negotiation is not awaiting approval (status %q)", n.Status))
		}
	case OpRollback:
		if n.Status.IsTerminal() && !actor.Has(CapOverride) {
			return errors.InvalidState(fmt.Sprintf("cannot roll back terminal status %q", n.Status))
		}
	case OpCancel:
		if n.Status != repository.StatusDraft && n.Status != repository.StatusSubmitted {
			return errors.InvalidState(fmt.Sprintf("cannot cancel negotiation with status %q", n.Status))
		}
	}

	return nil
}
