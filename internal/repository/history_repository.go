package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vitalle-health/be-negotiations/internal/platform/database"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
)

// HistoryRepository reads and appends the workflow history. The table is
// append-only; no update or delete is exposed.
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts one history record outside any surrounding transaction.
// Transitions applied through ApplyOutcome write their history inside the
// same transaction instead.
func (r *HistoryRepository) Append(ctx context.Context, entry *ApprovalHistoryEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return insertHistoryTx(ctx, tx, entry)
	})
}

// GetByNegotiationID returns the workflow history oldest-first.
func (r *HistoryRepository) GetByNegotiationID(ctx context.Context, negotiationID string) ([]*ApprovalHistoryEntry, error) {
	query := `
		SELECT id, negotiation_id, level, action, status, user_id, notes, created_at
		FROM negotiation_approval_history
		WHERE negotiation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, negotiationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval history")
	}
	defer rows.Close()

	entries := make([]*ApprovalHistoryEntry, 0)
	for rows.Next() {
		entry := &ApprovalHistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.NegotiationID,
			&entry.Level,
			&entry.Action,
			&entry.Status,
			&entry.UserID,
			&entry.Notes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan history entry")
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func insertHistoryTx(ctx context.Context, tx pgx.Tx, entry *ApprovalHistoryEntry) error {
	query := `
		INSERT INTO negotiation_approval_history
		    (negotiation_id, level, action, status, user_id, notes)
		VALUES ($1, $2, $3, $4::negotiation_status, $5, $6)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		entry.NegotiationID,
		entry.Level,
		entry.Action,
		entry.Status,
		entry.UserID,
		entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append history entry")
	}
	return nil
}
