package service

import (
	"context"
	"time"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/repository"
	"github.com/vitalle-health/be-negotiations/internal/scheduler"
)

// AlertStore is the persistence surface for contract alerts.
type AlertStore interface {
	Create(ctx context.Context, alert *repository.ContractAlert) error
	GetByID(ctx context.Context, id string) (*repository.ContractAlert, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	MarkResolved(ctx context.Context, id string) error
}

// AlertOptions holds escalation policy.
type AlertOptions struct {
	// EscalationInterval is the fixed delay between escalation attempts.
	EscalationInterval time.Duration
	// EscalationMaxAttempts bounds the number of escalation alerts for a
	// single target.
	EscalationMaxAttempts int
}

// ContractAlertService manages escalation targets for contract amendments
// that are awaiting renewal. Opening an alert starts the recurring
// escalation; resolving it cancels the cycle cooperatively at the next
// execution.
type ContractAlertService struct {
	store      AlertStore
	escStore   scheduler.EscalationStore
	dispatcher client.Dispatcher
	sched      scheduler.Enqueuer
	opts       AlertOptions
	log        *logger.Logger
}

// NewContractAlertService creates the service.
func NewContractAlertService(
	store AlertStore,
	escStore scheduler.EscalationStore,
	dispatcher client.Dispatcher,
	sched scheduler.Enqueuer,
	opts AlertOptions,
	log *logger.Logger,
) *ContractAlertService {
	return &ContractAlertService{
		store:      store,
		escStore:   escStore,
		dispatcher: dispatcher,
		sched:      sched,
		opts:       opts,
		log:        log,
	}
}

// OpenAlert registers an escalation target and schedules the first alert.
func (s *ContractAlertService) OpenAlert(ctx context.Context, negotiationID, contractRef string) (*repository.ContractAlert, error) {
	if negotiationID == "" {
		return nil, errors.InvalidInput("negotiation_id", "negotiation reference is required")
	}
	if contractRef == "" {
		return nil, errors.InvalidInput("contract_ref", "contract reference is required")
	}

	alert := &repository.ContractAlert{
		NegotiationID: negotiationID,
		ContractRef:   contractRef,
	}
	if err := s.store.Create(ctx, alert); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("alert_id", alert.ID).
		Str("negotiation_id", negotiationID).
		Msg("Contract alert opened")

	s.sched.Enqueue(
		scheduler.NewEscalationTask(alert.ID, s.escStore, s.dispatcher, s.sched, s.opts.EscalationInterval, s.opts.EscalationMaxAttempts, s.log),
		s.opts.EscalationInterval,
	)
	return alert, nil
}

// ResolveAlert marks the target resolved, which stops the escalation cycle
// at its next execution.
func (s *ContractAlertService) ResolveAlert(ctx context.Context, id string) error {
	if err := s.store.MarkResolved(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("alert_id", id).Msg("Contract alert resolved")
	return nil
}

// GetAlert returns the alert with its durable attempt counter.
func (s *ContractAlertService) GetAlert(ctx context.Context, id string) (*repository.ContractAlert, error) {
	return s.store.GetByID(ctx, id)
}
