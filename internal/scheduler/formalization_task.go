package scheduler

import (
	"context"
	"fmt"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// FormalizationStore is the slice of the negotiation store the
// formalization task needs.
type FormalizationStore interface {
	GetByID(ctx context.Context, id string) (*repository.Negotiation, error)
	SetFormalized(ctx context.Context, id string, history *repository.ApprovalHistoryEntry) (bool, error)
}

// FormalizationTask is the one-shot deferred task enqueued when a
// negotiation becomes approved. It waits out its delay, re-checks that the
// aditivo is still pending (a replayed execution may find it already
// advanced) and then formalizes the agreed terms.
type FormalizationTask struct {
	negotiationID string
	store         FormalizationStore
	dispatcher    client.Dispatcher
	log           *logger.Logger
}

// NewFormalizationTask creates the task for one negotiation.
func NewFormalizationTask(negotiationID string, store FormalizationStore, dispatcher client.Dispatcher, log *logger.Logger) *FormalizationTask {
	return &FormalizationTask{
		negotiationID: negotiationID,
		store:         store,
		dispatcher:    dispatcher,
		log:           log,
	}
}

// Name identifies the task in logs and dead-letter notices.
func (t *FormalizationTask) Name() string {
	return "formalization:" + t.negotiationID
}

// Execute formalizes the negotiation. Returning an error triggers the
// platform retry; the operational role is notified of every failure so a
// terminal one is never silent.
func (t *FormalizationTask) Execute(ctx context.Context) error {
	n, err := t.store.GetByID(ctx, t.negotiationID)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			t.log.Warn().Str("negotiation_id", t.negotiationID).
				Msg("Formalization target no longer exists, skipping")
			return nil
		}
		t.reportFailure(ctx, err)
		return err
	}

	if n.FormalizationStatus == nil || *n.FormalizationStatus != repository.FormalizationPendingAditivo {
		t.log.Info().
			Str("negotiation_id", t.negotiationID).
			Str("status", string(n.Status)).
			Msg("Formalization already advanced, skipping")
		return nil
	}

	history := &repository.ApprovalHistoryEntry{
		NegotiationID: n.ID,
		Action:        repository.ActionFormalize,
		Status:        n.Status,
		UserID:        "system",
	}

	formalized, err := t.store.SetFormalized(ctx, n.ID, history)
	if err != nil {
		t.reportFailure(ctx, err)
		return err
	}
	if !formalized {
		// Lost the race to a concurrent execution; nothing left to do.
		return nil
	}

	t.log.Info().
		Str("negotiation_id", n.ID).
		Msg("Negotiation formalized")

	t.dispatcher.SendToUser(ctx, n.CreatorID, client.Notice{
		Title:      "Negotiation formalized",
		Body:       fmt.Sprintf("Negotiation %q has been contractually formalized.", n.Title),
		ActionLink: "/negotiations/" + n.ID,
		Priority:   "info",
	})
	t.dispatcher.SendToRole(ctx, client.RoleContracts, client.Notice{
		Title:      "Aditivo formalized",
		Body:       fmt.Sprintf("Agreed terms of negotiation %q are now in effect.", n.Title),
		ActionLink: "/negotiations/" + n.ID,
		Priority:   "info",
	})

	return nil
}

func (t *FormalizationTask) reportFailure(ctx context.Context, err error) {
	t.log.Error().Err(err).
		Str("negotiation_id", t.negotiationID).
		Msg("Formalization task failed")

	t.dispatcher.SendToRole(ctx, client.RoleOperations, client.Notice{
		Title:      "Formalization failure",
		Body:       fmt.Sprintf("Formalization of negotiation %s failed: %v", t.negotiationID, err),
		ActionLink: "/negotiations/" + t.negotiationID,
		Priority:   "critical",
	})
}
