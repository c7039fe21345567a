package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// EscalationStore is the slice of the contract alert store the escalation
// task needs.
type EscalationStore interface {
	GetByID(ctx context.Context, id string) (*repository.ContractAlert, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
}

// EscalationTask is the self-rescheduling reminder for an unresolved
// contract amendment. The durable alert_attempts counter on the target row
// is the source of truth: a re-delivered execution after a crash reads and
// increments persisted state, never an in-memory copy.
type EscalationTask struct {
	alertID     string
	store       EscalationStore
	dispatcher  client.Dispatcher
	enqueuer    Enqueuer
	interval    time.Duration
	maxAttempts int
	log         *logger.Logger
}

// NewEscalationTask creates the recurring escalation task for one alert
// target.
func NewEscalationTask(
	alertID string,
	store EscalationStore,
	dispatcher client.Dispatcher,
	enqueuer Enqueuer,
	interval time.Duration,
	maxAttempts int,
	log *logger.Logger,
) *EscalationTask {
	return &EscalationTask{
		alertID:     alertID,
		store:       store,
		dispatcher:  dispatcher,
		enqueuer:    enqueuer,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Name identifies the task in logs and dead-letter notices.
func (t *EscalationTask) Name() string {
	return "escalation:" + t.alertID
}

// Execute sends one escalation alert and reschedules itself while the
// target stays unresolved and attempts remain. Cancellation is cooperative:
// resolution is re-read immediately before sending, accepting a small
// window of benign duplicate notification over distributed locking.
func (t *EscalationTask) Execute(ctx context.Context) error {
	alert, err := t.store.GetByID(ctx, t.alertID)
	if err != nil {
		return err
	}

	if alert.Resolved {
		t.log.Debug().
			Str("alert_id", t.alertID).
			Msg("Escalation target resolved, stopping")
		return nil
	}

	// Best-effort send; the dispatcher swallows delivery failures so the
	// attempt bookkeeping below always proceeds.
	t.dispatcher.SendToRole(ctx, client.RoleContracts, client.Notice{
		Title:      "Contract amendment pending",
		Body:       fmt.Sprintf("Aditivo %s of negotiation %s is still awaiting renewal.", alert.ContractRef, alert.NegotiationID),
		ActionLink: "/negotiations/" + alert.NegotiationID,
		Priority:   "warning",
	})

	attempts, err := t.store.IncrementAttempts(ctx, t.alertID)
	if err != nil {
		return err
	}

	t.log.Info().
		Str("alert_id", t.alertID).
		Int("attempt", attempts).
		Int("max_attempts", t.maxAttempts).
		Msg("Escalation alert sent")

	if attempts < t.maxAttempts {
		t.enqueuer.Enqueue(t, t.interval)
	} else {
		t.log.Info().
			Str("alert_id", t.alertID).
			Msg("Escalation attempts exhausted, not rescheduling")
	}

	return nil
}
