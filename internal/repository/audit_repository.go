package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/vitalle-health/be-negotiations/internal/platform/database"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
)

// AuditRepository appends and reads immutable field-diff audit records.
// The table has a delete-prevention trigger so Append is the only mutation.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit record.
func (r *AuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return insertAuditTx(ctx, tx, entry)
	})
}

// GetByNegotiationID returns the audit trail oldest-first.
func (r *AuditRepository) GetByNegotiationID(ctx context.Context, negotiationID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, negotiation_id, actor_id, action, changes, created_at
		FROM negotiation_audit_log
		WHERE negotiation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, negotiationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	entries := make([]*AuditEntry, 0)
	for rows.Next() {
		entry := &AuditEntry{}
		var changesJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.NegotiationID,
			&entry.ActorID,
			&entry.Action,
			&changesJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit changes")
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func insertAuditTx(ctx context.Context, tx pgx.Tx, entry *AuditEntry) error {
	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit changes")
	}

	query := `
		INSERT INTO negotiation_audit_log (negotiation_id, actor_id, action, changes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		entry.NegotiationID,
		entry.ActorID,
		entry.Action,
		changesJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}
