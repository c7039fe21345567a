package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/repository"
	"github.com/vitalle-health/be-negotiations/internal/scheduler"
)

// NegotiationStore is the persistence surface the state machine needs. The
// pgx implementation lives in the repository package; tests use an
// in-memory fake.
type NegotiationStore interface {
	GetByID(ctx context.Context, id string) (*repository.Negotiation, error)
	Create(ctx context.Context, n *repository.Negotiation, audit *repository.AuditEntry) error
	ApplyOutcome(ctx context.Context, out *repository.ApprovalOutcome) error
	MarkExpired(ctx context.Context, id string, approvedBefore time.Time, history *repository.ApprovalHistoryEntry, audit *repository.AuditEntry) (bool, error)
	SetFormalized(ctx context.Context, id string, history *repository.ApprovalHistoryEntry) (bool, error)
	ListExpirable(ctx context.Context, approvedBefore time.Time, limit, offset int) ([]*repository.Negotiation, error)
}

// HistoryStore reads the workflow history.
type HistoryStore interface {
	GetByNegotiationID(ctx context.Context, negotiationID string) ([]*repository.ApprovalHistoryEntry, error)
}

// AuditStore reads the field-diff audit trail.
type AuditStore interface {
	GetByNegotiationID(ctx context.Context, negotiationID string) ([]*repository.AuditEntry, error)
}

// Options holds workflow timing policy.
type Options struct {
	// FormalizationDelay pauses the one-shot formalization task so
	// approval notifications settle first.
	FormalizationDelay time.Duration
	// ExpirationThreshold is the default age after which an approved
	// negotiation still pending its aditivo may be expired.
	ExpirationThreshold time.Duration
}

// NegotiationService is the negotiation state machine. Every operation is
// authorization-guarded, validated before any mutation, and persisted as a
// single transactional outcome; domain events publish only after the commit.
type NegotiationService struct {
	store      NegotiationStore
	history    HistoryStore
	audit      AuditStore
	bus        *EventBus
	sched      scheduler.Enqueuer
	dispatcher client.Dispatcher
	opts       Options
	log        *logger.Logger
}

// NewNegotiationService creates the service.
func NewNegotiationService(
	store NegotiationStore,
	history HistoryStore,
	audit AuditStore,
	bus *EventBus,
	sched scheduler.Enqueuer,
	dispatcher client.Dispatcher,
	opts Options,
	log *logger.Logger,
) *NegotiationService {
	return &NegotiationService{
		store:      store,
		history:    history,
		audit:      audit,
		bus:        bus,
		sched:      sched,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log,
	}
}

// ── Create ────────────────────────────────────────────────────────────────────

// CreateItemRequest is one proposed item.
type CreateItemRequest struct {
	ProcedureID   string
	ProposedValue int64 // cents
}

// CreateNegotiationRequest creates a draft negotiation.
type CreateNegotiationRequest struct {
	Title       string
	Description *string
	Items       []CreateItemRequest
}

// CreateNegotiation creates a draft owned by the actor.
func (s *NegotiationService) CreateNegotiation(ctx context.Context, actor Actor, req *CreateNegotiationRequest) (*repository.Negotiation, error) {
	if !actor.Has(CapManage) {
		return nil, errors.Forbidden("missing capability for create")
	}
	if req.Title == "" {
		return nil, errors.InvalidInput("title", "title is required")
	}
	for _, item := range req.Items {
		if item.ProcedureID == "" {
			return nil, errors.InvalidInput("procedure_id", "procedure reference is required")
		}
		if item.ProposedValue <= 0 {
			return nil, errors.InvalidInput("proposed_value", "proposed value must be positive")
		}
	}

	n := &repository.Negotiation{
		Title:       req.Title,
		Description: req.Description,
		Status:      repository.StatusDraft,
		CreatorID:   actor.ID,
		Items:       make([]*repository.NegotiationItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		n.Items = append(n.Items, &repository.NegotiationItem{
			ProcedureID:   item.ProcedureID,
			ProposedValue: item.ProposedValue,
			Status:        repository.ItemPending,
		})
	}

	audit := buildAuditEntry("", actor.ID, "create", map[string]any{}, n.AuditValues())
	if err := s.store.Create(ctx, n, audit); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("negotiation_id", n.ID).
		Str("creator_id", actor.ID).
		Int("item_count", len(n.Items)).
		Msg("Negotiation created")

	s.publish(ctx, EventCreated, n, actor.ID, nil)
	return n, nil
}

// ── Submit ────────────────────────────────────────────────────────────────────

// SubmitForApproval moves a draft with at least one item into the approval
// stage.
func (s *NegotiationService) SubmitForApproval(ctx context.Context, id string, actor Actor) (*repository.Negotiation, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(n, actor, OpSubmit); err != nil {
		return nil, err
	}
	if len(n.Items) == 0 {
		return nil, errors.InvalidInput("items", "negotiation must have at least 1 item")
	}

	before := n.AuditValues()
	prior := n.Status
	level := repository.LevelPendingApproval
	n.Status = repository.StatusSubmitted
	n.ApprovalLevel = &level

	out := &repository.ApprovalOutcome{
		Negotiation: n,
		PriorStatus: prior,
		History: &repository.ApprovalHistoryEntry{
			NegotiationID: n.ID,
			Level:         &level,
			Action:        repository.ActionSubmitForApproval,
			Status:        n.Status,
			UserID:        actor.ID,
		},
		Audit: buildAuditEntry(n.ID, actor.ID, repository.ActionSubmitForApproval, before, n.AuditValues()),
	}
	if err := s.store.ApplyOutcome(ctx, out); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("negotiation_id", n.ID).
		Str("submitted_by", actor.ID).
		Msg("Negotiation submitted for approval")

	s.publish(ctx, EventSubmitted, n, actor.ID, nil)
	return n, nil
}

// ── Decide ────────────────────────────────────────────────────────────────────

// Item decisions accepted by ProcessApproval.
const (
	DecisionApprove      = "approve"
	DecisionReject       = "reject"
	DecisionCounterOffer = "counter_offer"
)

// ItemDecision is one per-item verdict. Value is required for counter
// offers and defaults to the proposed value for approvals.
type ItemDecision struct {
	ItemID   string
	Decision string
	Value    *int64
}

// ApprovalResult is the outcome of ProcessApproval.
type ApprovalResult struct {
	Negotiation *repository.Negotiation
	Forked      *repository.Negotiation // non-nil on a partial outcome
}

// ProcessApproval applies the item decisions, classifies the aggregate
// outcome and performs the matching transition. A partial outcome forks the
// unresolved items into a successor negotiation inside the same
// transaction. The approval level clears on every outcome.
func (s *NegotiationService) ProcessApproval(ctx context.Context, id string, actor Actor, decisions []ItemDecision, notes *string) (*ApprovalResult, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(n, actor, OpDecide); err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, errors.InvalidInput("decisions", "at least one item decision is required")
	}

	itemsByID := make(map[string]*repository.NegotiationItem, len(n.Items))
	for _, item := range n.Items {
		itemsByID[item.ID] = item
	}

	now := time.Now()
	updated := make([]*repository.NegotiationItem, 0, len(decisions))

	for _, d := range decisions {
		item, ok := itemsByID[d.ItemID]
		if !ok {
			return nil, errors.InvalidInput("item_id", fmt.Sprintf("item %q does not belong to this negotiation", d.ItemID))
		}

		switch d.Decision {
		case DecisionApprove:
			value := item.ProposedValue
			if d.Value != nil {
				value = *d.Value
			}
			if value <= 0 {
				return nil, errors.InvalidInput("value", "approved value must be positive")
			}
			item.Status = repository.ItemApproved
			item.ApprovedValue = &value
		case DecisionReject:
			item.Status = repository.ItemRejected
			item.ApprovedValue = nil
		case DecisionCounterOffer:
			if d.Value == nil || *d.Value <= 0 {
				return nil, errors.InvalidInput("value", "counter offer requires a positive value")
			}
			item.Status = repository.ItemCounterOffered
			item.ApprovedValue = d.Value
		default:
			return nil, errors.InvalidInput("decision", fmt.Sprintf("unknown decision %q", d.Decision))
		}

		respondedAt := now
		item.RespondedAt = &respondedAt
		updated = append(updated, item)
	}

	agg := AggregateItems(n.Items)

	before := n.AuditValues()
	prior := n.Status
	level := *n.ApprovalLevel
	n.ApprovalLevel = nil
	n.ApprovalNotes = notes

	var (
		action    string
		eventType EventType
		fork      *repository.ForkPlan
	)

	switch agg.Class {
	case FullApprove:
		formalization := repository.FormalizationPendingAditivo
		n.Status = repository.StatusApproved
		n.FormalizationStatus = &formalization
		n.ApprovedBy = &actor.ID
		n.ApprovedAt = &now
		action = repository.ActionApprove
		eventType = EventApproved
	case FullReject:
		n.Status = repository.StatusRejected
		n.RejectedBy = &actor.ID
		n.RejectedAt = &now
		action = repository.ActionReject
		eventType = EventRejected
	case Partial:
		n.Status = repository.StatusPartiallyApproved
		n.ApprovedBy = &actor.ID
		n.ApprovedAt = &now
		action = repository.ActionApprove
		eventType = EventPartiallyApproved
		fork = BuildForkPlan(n, agg.Unresolved, actor)
	}

	historyNotes := notes
	if fork != nil {
		msg := fmt.Sprintf("partial approval: %d unresolved item(s) forked to %s", len(fork.ItemIDs), fork.Negotiation.ID)
		if notes != nil {
			msg = *notes + "; " + msg
		}
		historyNotes = &msg
	}

	out := &repository.ApprovalOutcome{
		Negotiation: n,
		PriorStatus: prior,
		ItemUpdates: updated,
		Fork:        fork,
		History: &repository.ApprovalHistoryEntry{
			NegotiationID: n.ID,
			Level:         &level,
			Action:        action,
			Status:        n.Status,
			UserID:        actor.ID,
			Notes:         historyNotes,
		},
		Audit: buildAuditEntry(n.ID, actor.ID, action, before, n.AuditValues()),
	}
	if err := s.store.ApplyOutcome(ctx, out); err != nil {
		return nil, err
	}

	result := &ApprovalResult{Negotiation: n}
	evt := Event{
		Type:          eventType,
		NegotiationID: n.ID,
		Title:         n.Title,
		CreatorID:     n.CreatorID,
		ActorID:       actor.ID,
		OccurredAt:    now,
	}

	switch agg.Class {
	case FullApprove:
		s.log.Info().
			Str("negotiation_id", n.ID).
			Str("approved_by", actor.ID).
			Msg("Negotiation fully approved")
		// Formalization runs deferred so approval notifications settle first.
		s.sched.Enqueue(scheduler.NewFormalizationTask(n.ID, s.store, s.dispatcher, s.log), s.opts.FormalizationDelay)
	case FullReject:
		s.log.Info().
			Str("negotiation_id", n.ID).
			Str("rejected_by", actor.ID).
			Msg("Negotiation fully rejected")
	case Partial:
		// Repartition the in-memory items to match what committed: carried
		// items now belong to the successor, reset to pending.
		carried := make(map[string]bool, len(fork.ItemIDs))
		for _, itemID := range fork.ItemIDs {
			carried[itemID] = true
		}
		kept := n.Items[:0]
		for _, item := range n.Items {
			if carried[item.ID] {
				item.NegotiationID = fork.Negotiation.ID
				item.Status = repository.ItemPending
				item.ApprovedValue = nil
				fork.Negotiation.Items = append(fork.Negotiation.Items, item)
			} else {
				kept = append(kept, item)
			}
		}
		n.Items = kept

		result.Forked = fork.Negotiation
		evt.ForkID = fork.Negotiation.ID
		evt.CarriedItems = len(fork.ItemIDs)
		evt.ApprovedItems = len(n.Items)
		s.log.Info().
			Str("negotiation_id", n.ID).
			Str("forked_to", fork.Negotiation.ID).
			Int("carried_items", evt.CarriedItems).
			Msg("Negotiation partially approved, unresolved items forked")
	}

	s.bus.Publish(ctx, evt)
	return result, nil
}

// ── Rollback ──────────────────────────────────────────────────────────────────

// RollbackStatus reverts a negotiation to the immediately preceding
// non-terminal status recorded in its history. Terminal statuses can only
// be rolled back by an actor holding the override capability.
func (s *NegotiationService) RollbackStatus(ctx context.Context, id string, actor Actor, reason string) (*repository.Negotiation, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(n, actor, OpRollback); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, errors.InvalidInput("reason", "rollback reason is required")
	}

	entries, err := s.history.GetByNegotiationID(ctx, n.ID)
	if err != nil {
		return nil, err
	}

	target, ok := previousStatus(entries, n.Status)
	if !ok {
		return nil, errors.InvalidState("no previous status to roll back to")
	}

	before := n.AuditValues()
	prior := n.Status
	n.Status = target

	n.ApprovalLevel = nil
	if target == repository.StatusSubmitted {
		level := repository.LevelPendingApproval
		n.ApprovalLevel = &level
	}

	n.FormalizationStatus = nil
	if target == repository.StatusApproved {
		formalization := repository.FormalizationPendingAditivo
		n.FormalizationStatus = &formalization
	} else {
		n.ApprovedBy = nil
		n.ApprovedAt = nil
	}
	n.RejectedBy = nil
	n.RejectedAt = nil

	out := &repository.ApprovalOutcome{
		Negotiation: n,
		PriorStatus: prior,
		History: &repository.ApprovalHistoryEntry{
			NegotiationID: n.ID,
			Level:         n.ApprovalLevel,
			Action:        repository.ActionRollback,
			Status:        target,
			UserID:        actor.ID,
			Notes:         &reason,
		},
		Audit: buildAuditEntry(n.ID, actor.ID, repository.ActionRollback, before, n.AuditValues()),
	}
	if err := s.store.ApplyOutcome(ctx, out); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("negotiation_id", n.ID).
		Str("rolled_back_to", string(target)).
		Str("reason", reason).
		Msg("Negotiation status rolled back")

	if target == repository.StatusApproved {
		// The aditivo is pending again; restart the deferred formalization
		// so the negotiation does not idle until the expiration sweep.
		s.sched.Enqueue(scheduler.NewFormalizationTask(n.ID, s.store, s.dispatcher, s.log), s.opts.FormalizationDelay)
	}

	s.publish(ctx, EventRolledBack, n, actor.ID, nil)
	return n, nil
}

// previousStatus walks the history newest-first and returns the most recent
// non-terminal status different from the current one. A draft baseline is
// implied when the history holds nothing older than the current status.
func previousStatus(entries []*repository.ApprovalHistoryEntry, current repository.Status) (repository.Status, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		st := entries[i].Status
		if st == current || st.IsTerminal() {
			continue
		}
		return st, true
	}
	if current != repository.StatusDraft {
		return repository.StatusDraft, true
	}
	return "", false
}

// ── Cancel ────────────────────────────────────────────────────────────────────

// Cancel terminates a draft or submitted negotiation by explicit actor
// action.
func (s *NegotiationService) Cancel(ctx context.Context, id string, actor Actor, reason *string) (*repository.Negotiation, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(n, actor, OpCancel); err != nil {
		return nil, err
	}

	before := n.AuditValues()
	prior := n.Status
	n.Status = repository.StatusCancelled
	n.ApprovalLevel = nil

	out := &repository.ApprovalOutcome{
		Negotiation: n,
		PriorStatus: prior,
		History: &repository.ApprovalHistoryEntry{
			NegotiationID: n.ID,
			Action:        repository.ActionCancel,
			Status:        n.Status,
			UserID:        actor.ID,
			Notes:         reason,
		},
		Audit: buildAuditEntry(n.ID, actor.ID, repository.ActionCancel, before, n.AuditValues()),
	}
	if err := s.store.ApplyOutcome(ctx, out); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("negotiation_id", n.ID).
		Str("cancelled_by", actor.ID).
		Msg("Negotiation cancelled")

	s.publish(ctx, EventCancelled, n, actor.ID, nil)
	return n, nil
}

// ── Expire ────────────────────────────────────────────────────────────────────

// MarkExpired expires an approved negotiation whose aditivo has been
// pending longer than the threshold. Calling it on an already-expired
// negotiation is a no-op; the SQL guard keeps concurrent sweeps idempotent
// too. Returns whether the transition happened.
func (s *NegotiationService) MarkExpired(ctx context.Context, id string) (bool, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if n.Status == repository.StatusExpired {
		return false, nil
	}
	if n.Status != repository.StatusApproved || n.FormalizationStatus == nil ||
		*n.FormalizationStatus != repository.FormalizationPendingAditivo {
		return false, errors.InvalidState(fmt.Sprintf("cannot expire negotiation with status %q", n.Status))
	}

	cutoff := time.Now().Add(-s.opts.ExpirationThreshold)
	if n.ApprovedAt == nil || n.ApprovedAt.After(cutoff) {
		return false, errors.InvalidState("negotiation has not aged past the expiration threshold")
	}

	before := n.AuditValues()
	n.Status = repository.StatusExpired
	n.FormalizationStatus = nil

	history := &repository.ApprovalHistoryEntry{
		NegotiationID: n.ID,
		Action:        repository.ActionExpire,
		Status:        repository.StatusExpired,
		UserID:        "system",
	}
	audit := buildAuditEntry(n.ID, "system", repository.ActionExpire, before, n.AuditValues())

	expired, err := s.store.MarkExpired(ctx, n.ID, cutoff, history, audit)
	if err != nil {
		return false, err
	}
	if !expired {
		return false, nil
	}

	s.log.Info().
		Str("negotiation_id", n.ID).
		Msg("Negotiation expired")

	s.publish(ctx, EventExpired, n, "system", nil)
	return true, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// GetNegotiation returns the aggregate with its items.
func (s *NegotiationService) GetNegotiation(ctx context.Context, id string) (*repository.Negotiation, error) {
	return s.store.GetByID(ctx, id)
}

// GetApprovalHistory returns the workflow history oldest-first.
func (s *NegotiationService) GetApprovalHistory(ctx context.Context, id string) ([]*repository.ApprovalHistoryEntry, error) {
	return s.history.GetByNegotiationID(ctx, id)
}

// GetAuditTrail returns the field-diff audit trail oldest-first.
func (s *NegotiationService) GetAuditTrail(ctx context.Context, id string) ([]*repository.AuditEntry, error) {
	return s.audit.GetByNegotiationID(ctx, id)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *NegotiationService) publish(ctx context.Context, t EventType, n *repository.Negotiation, actorID string, at *time.Time) {
	occurred := time.Now()
	if at != nil {
		occurred = *at
	}
	s.bus.Publish(ctx, Event{
		Type:          t,
		NegotiationID: n.ID,
		Title:         n.Title,
		CreatorID:     n.CreatorID,
		ActorID:       actorID,
		OccurredAt:    occurred,
	})
}
