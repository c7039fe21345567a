package repository

import "time"

// ── Negotiation aggregate ─────────────────────────────────────────────────────

// Status is the top-level negotiation lifecycle status.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSubmitted         Status = "submitted"
	StatusApproved          Status = "approved"
	StatusPartiallyApproved Status = "partially_approved"
	StatusRejected          Status = "rejected"
	StatusExpired           Status = "expired"
	StatusCancelled         Status = "cancelled"
)

// IsTerminal reports whether the status ends the negotiation cycle.
// Approved is not terminal: the formalization branch is still open.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPartiallyApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// ApprovalLevel is the pending decision stage. Only one level is active at a
// time; further levels (financial, management, legal, direction) slot in as
// additional constants.
type ApprovalLevel string

const (
	LevelPendingApproval ApprovalLevel = "pending_approval"
	LevelFinancial       ApprovalLevel = "financial"
	LevelManagement      ApprovalLevel = "management"
	LevelLegal           ApprovalLevel = "legal"
	LevelDirection       ApprovalLevel = "direction"
)

// FormalizationStatus tracks the post-approval contractual step.
type FormalizationStatus string

const (
	FormalizationPendingAditivo FormalizationStatus = "pending_aditivo"
	FormalizationFormalized     FormalizationStatus = "formalized"
)

// Negotiation is the aggregate root for a proposed set of priced items
// pending multi-party agreement. Mutated only through the state machine in
// the service package.
type Negotiation struct {
	ID                  string
	Title               string
	Description         *string
	Status              Status
	ApprovalLevel       *ApprovalLevel       // non-nil iff status=submitted
	FormalizationStatus *FormalizationStatus // non-nil iff status=approved
	CreatorID           string
	ApprovedBy          *string
	ApprovedAt          *time.Time
	RejectedBy          *string
	RejectedAt          *time.Time
	ApprovalNotes       *string
	ParentNegotiationID *string // fork lineage
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Items               []*NegotiationItem
}

// AuditValues exposes the auditable field set of the aggregate. The audit
// trail diffs two snapshots of this map and records changed fields only.
func (n *Negotiation) AuditValues() map[string]any {
	vals := map[string]any{
		"title":  n.Title,
		"status": string(n.Status),
	}
	if n.Description != nil {
		vals["description"] = *n.Description
	}
	if n.ApprovalLevel != nil {
		vals["approval_level"] = string(*n.ApprovalLevel)
	}
	if n.FormalizationStatus != nil {
		vals["formalization_status"] = string(*n.FormalizationStatus)
	}
	if n.ApprovedBy != nil {
		vals["approved_by"] = *n.ApprovedBy
	}
	if n.RejectedBy != nil {
		vals["rejected_by"] = *n.RejectedBy
	}
	if n.ApprovalNotes != nil {
		vals["approval_notes"] = *n.ApprovalNotes
	}
	if n.ParentNegotiationID != nil {
		vals["parent_negotiation_id"] = *n.ParentNegotiationID
	}
	return vals
}

// ── Items ─────────────────────────────────────────────────────────────────────

// ItemStatus is the per-item decision state.
type ItemStatus string

const (
	ItemPending        ItemStatus = "pending"
	ItemApproved       ItemStatus = "approved"
	ItemRejected       ItemStatus = "rejected"
	ItemCounterOffered ItemStatus = "counter_offered"
)

// NegotiationItem is one priced procedure under negotiation. An item belongs
// to exactly one negotiation at any instant; a fork reassigns it, never
// copies it.
type NegotiationItem struct {
	ID            string
	NegotiationID string
	ProcedureID   string // the priced procedure under negotiation
	ProposedValue int64  // cents
	ApprovedValue *int64 // set only when status is approved or counter_offered
	Status        ItemStatus
	RespondedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ── Workflow history ──────────────────────────────────────────────────────────

// History actions, one per workflow-significant transition.
const (
	ActionSubmitForApproval = "submit_for_approval"
	ActionApprove           = "approve"
	ActionReject            = "reject"
	ActionFork              = "fork"
	ActionFormalize         = "formalize"
	ActionExpire            = "expire"
	ActionRollback          = "rollback"
	ActionCancel            = "cancel"
)

// ApprovalHistoryEntry is one immutable record in the workflow history.
// Never updated or deleted.
type ApprovalHistoryEntry struct {
	ID            string
	NegotiationID string
	Level         *ApprovalLevel
	Action        string
	Status        Status // negotiation status after the action
	UserID        string
	Notes         *string
	CreatedAt     time.Time
}

// ── Field-diff audit ──────────────────────────────────────────────────────────

// FieldChange is the before/after pair for one changed field.
type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// AuditEntry is one immutable field-diff record for a negotiation write.
type AuditEntry struct {
	ID            string
	NegotiationID string
	ActorID       string
	Action        string
	Changes       map[string]FieldChange // changed fields only, never empty
	CreatedAt     time.Time
}

// ── Escalation target ─────────────────────────────────────────────────────────

// ContractAlert is the durable target of the recurring escalation task: a
// contract amendment (aditivo) awaiting renewal. AlertAttempts is the source
// of truth for how many alerts were actually sent; task payloads carry no
// counter of their own.
type ContractAlert struct {
	ID            string
	NegotiationID string
	ContractRef   string
	AlertAttempts int
	Resolved      bool
	LastAlertAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ── Composite transactional writes ────────────────────────────────────────────

// ForkPlan describes the successor negotiation created when an approval
// resolves partially. ItemIDs are reassigned to the successor with status
// reset to pending and approved_value cleared.
type ForkPlan struct {
	Negotiation *Negotiation
	ItemIDs     []string
	History     *ApprovalHistoryEntry // action=fork, recorded on the successor
	Audit       *AuditEntry           // creation record for the successor
}

// ApprovalOutcome is the full set of writes for one state transition. The
// repository applies all of it in a single transaction: negotiation update,
// item updates, optional fork, history append, optional audit append.
// PriorStatus guards the update: the write only applies while the row still
// holds the status the caller decided on, so racing transitions cannot both
// commit.
type ApprovalOutcome struct {
	Negotiation *Negotiation
	PriorStatus Status
	ItemUpdates []*NegotiationItem
	Fork        *ForkPlan
	History     *ApprovalHistoryEntry
	Audit       *AuditEntry // nil when the field diff is empty
}
