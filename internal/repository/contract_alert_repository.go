package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vitalle-health/be-negotiations/internal/platform/database"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
)

// ContractAlertRepository manages escalation targets. The attempt counter
// lives on the row and is incremented atomically in SQL, so it survives
// process restarts and duplicate task deliveries.
type ContractAlertRepository struct {
	db *database.DB
}

// NewContractAlertRepository creates a new ContractAlertRepository.
func NewContractAlertRepository(db *database.DB) *ContractAlertRepository {
	return &ContractAlertRepository{db: db}
}

// Create inserts a new alert target with zero attempts.
func (r *ContractAlertRepository) Create(ctx context.Context, alert *ContractAlert) error {
	query := `
		INSERT INTO contract_alerts (negotiation_id, contract_ref)
		VALUES ($1, $2)
		RETURNING id, alert_attempts, resolved, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, alert.NegotiationID, alert.ContractRef).
		Scan(&alert.ID, &alert.AlertAttempts, &alert.Resolved, &alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create contract alert")
	}
	return nil
}

// GetByID retrieves an alert target.
func (r *ContractAlertRepository) GetByID(ctx context.Context, id string) (*ContractAlert, error) {
	alert := &ContractAlert{}
	query := `
		SELECT id, negotiation_id, contract_ref, alert_attempts, resolved,
		       last_alert_at, created_at, updated_at
		FROM contract_alerts
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&alert.ID,
		&alert.NegotiationID,
		&alert.ContractRef,
		&alert.AlertAttempts,
		&alert.Resolved,
		&alert.LastAlertAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("contract alert", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get contract alert")
	}
	return alert, nil
}

// IncrementAttempts bumps the durable attempt counter and returns the
// persisted value. Resolved targets are not incremented.
func (r *ContractAlertRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE contract_alerts
		SET alert_attempts = alert_attempts + 1,
		    last_alert_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND NOT resolved
		RETURNING alert_attempts
	`
	var attempts int
	err := r.db.QueryRow(ctx, query, id).Scan(&attempts)
	if err == pgx.ErrNoRows {
		return 0, errors.NotFound("contract alert", id)
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to increment alert attempts")
	}
	return attempts, nil
}

// MarkResolved flags the target as resolved; subsequent escalation task
// executions see the flag and stop rescheduling.
func (r *ContractAlertRepository) MarkResolved(ctx context.Context, id string) error {
	query := `
		UPDATE contract_alerts
		SET resolved = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	var returned string
	err := r.db.QueryRow(ctx, query, id).Scan(&returned)
	if err == pgx.ErrNoRows {
		return errors.NotFound("contract alert", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to resolve contract alert")
	}
	return nil
}
