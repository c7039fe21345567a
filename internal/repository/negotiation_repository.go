package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vitalle-health/be-negotiations/internal/platform/database"
	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
)

// NegotiationRepository owns all reads and writes of the negotiation
// aggregate. Multi-entity mutations go through ApplyOutcome so the
// negotiation, its items, the fork and the history land in one transaction.
type NegotiationRepository struct {
	db *database.DB
}

// NewNegotiationRepository creates a new NegotiationRepository.
func NewNegotiationRepository(db *database.DB) *NegotiationRepository {
	return &NegotiationRepository{db: db}
}

// Create inserts a negotiation with its items and the create audit record.
func (r *NegotiationRepository) Create(ctx context.Context, n *Negotiation, audit *AuditEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO negotiations (title, description, status, creator_id, parent_negotiation_id)
			VALUES ($1, $2, $3::negotiation_status, $4, $5)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			n.Title,
			n.Description,
			n.Status,
			n.CreatorID,
			n.ParentNegotiationID,
		).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create negotiation")
		}

		for _, item := range n.Items {
			item.NegotiationID = n.ID
			if err := insertItemTx(ctx, tx, item); err != nil {
				return err
			}
		}

		if audit != nil {
			audit.NegotiationID = n.ID
			if err := insertAuditTx(ctx, tx, audit); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID retrieves a negotiation with all its items.
func (r *NegotiationRepository) GetByID(ctx context.Context, id string) (*Negotiation, error) {
	n := &Negotiation{}

	query := `
		SELECT id, title, description, status, approval_level, formalization_status,
		       creator_id, approved_by, approved_at, rejected_by, rejected_at,
		       approval_notes, parent_negotiation_id, created_at, updated_at
		FROM negotiations
		WHERE id = $1
	`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.Title,
		&n.Description,
		&n.Status,
		&n.ApprovalLevel,
		&n.FormalizationStatus,
		&n.CreatorID,
		&n.ApprovedBy,
		&n.ApprovedAt,
		&n.RejectedBy,
		&n.RejectedAt,
		&n.ApprovalNotes,
		&n.ParentNegotiationID,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("negotiation", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get negotiation")
	}

	items, err := r.GetItems(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	n.Items = items

	return n, nil
}

// GetItems retrieves all items currently owned by a negotiation.
func (r *NegotiationRepository) GetItems(ctx context.Context, negotiationID string) ([]*NegotiationItem, error) {
	query := `
		SELECT id, negotiation_id, procedure_id, proposed_value, approved_value,
		       status, responded_at, created_at, updated_at
		FROM negotiation_items
		WHERE negotiation_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, negotiationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get negotiation items")
	}
	defer rows.Close()

	items := make([]*NegotiationItem, 0)
	for rows.Next() {
		item := &NegotiationItem{}
		err := rows.Scan(
			&item.ID,
			&item.NegotiationID,
			&item.ProcedureID,
			&item.ProposedValue,
			&item.ApprovedValue,
			&item.Status,
			&item.RespondedAt,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan negotiation item")
		}
		items = append(items, item)
	}

	return items, nil
}

// ApplyOutcome persists one state transition atomically: negotiation fields,
// item decisions, the optional fork (successor insert + item reassignment),
// the history record and the audit record commit together or not at all.
// The negotiation row is locked for the duration of the transaction.
func (r *NegotiationRepository) ApplyOutcome(ctx context.Context, out *ApprovalOutcome) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM negotiations WHERE id = $1 FOR UPDATE`, out.Negotiation.ID).Scan(&locked)
		if err == pgx.ErrNoRows {
			return errors.NotFound("negotiation", out.Negotiation.ID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock negotiation")
		}

		if err := updateNegotiationTx(ctx, tx, out.Negotiation, out.PriorStatus); err != nil {
			return err
		}

		for _, item := range out.ItemUpdates {
			query := `
				UPDATE negotiation_items
				SET status = $3::negotiation_item_status,
				    approved_value = $4,
				    responded_at = $5,
				    updated_at = NOW()
				WHERE id = $1 AND negotiation_id = $2
			`
			tag, err := tx.Exec(ctx, query,
				item.ID,
				out.Negotiation.ID,
				item.Status,
				item.ApprovedValue,
				item.RespondedAt,
			)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to update negotiation item")
			}
			if tag.RowsAffected() == 0 {
				return errors.NotFound("negotiation item", item.ID)
			}
		}

		if out.Fork != nil {
			if err := applyForkTx(ctx, tx, out.Fork); err != nil {
				return err
			}
		}

		if out.History != nil {
			if err := insertHistoryTx(ctx, tx, out.History); err != nil {
				return err
			}
		}

		if out.Audit != nil {
			if err := insertAuditTx(ctx, tx, out.Audit); err != nil {
				return err
			}
		}

		return nil
	})
}

// MarkExpired transitions an approved negotiation pending its aditivo to
// expired, guarded in SQL so repeated calls are no-ops. Returns whether the
// transition actually happened; history and audit are written only then.
func (r *NegotiationRepository) MarkExpired(ctx context.Context, id string, approvedBefore time.Time, history *ApprovalHistoryEntry, audit *AuditEntry) (bool, error) {
	expired := false
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE negotiations
			SET status = 'expired'::negotiation_status,
			    formalization_status = NULL,
			    updated_at = NOW()
			WHERE id = $1
			  AND status = 'approved'
			  AND formalization_status = 'pending_aditivo'
			  AND approved_at <= $2
		`
		tag, err := tx.Exec(ctx, query, id, approvedBefore)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to expire negotiation")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		expired = true

		if err := insertHistoryTx(ctx, tx, history); err != nil {
			return err
		}
		if audit != nil {
			if err := insertAuditTx(ctx, tx, audit); err != nil {
				return err
			}
		}
		return nil
	})
	return expired, err
}

// SetFormalized advances formalization_status from pending_aditivo to
// formalized. The SQL guard makes replayed task executions no-ops; the
// history record is written only on the execution that actually advanced it.
func (r *NegotiationRepository) SetFormalized(ctx context.Context, id string, history *ApprovalHistoryEntry) (bool, error) {
	formalized := false
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE negotiations
			SET formalization_status = 'formalized'::formalization_status,
			    updated_at = NOW()
			WHERE id = $1
			  AND status = 'approved'
			  AND formalization_status = 'pending_aditivo'
		`
		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to formalize negotiation")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		formalized = true

		return insertHistoryTx(ctx, tx, history)
	})
	return formalized, err
}

// ListExpirable returns a page of approved negotiations still pending their
// aditivo whose approval is older than the threshold.
func (r *NegotiationRepository) ListExpirable(ctx context.Context, approvedBefore time.Time, limit, offset int) ([]*Negotiation, error) {
	query := `
		SELECT id, title, description, status, approval_level, formalization_status,
		       creator_id, approved_by, approved_at, rejected_by, rejected_at,
		       approval_notes, parent_negotiation_id, created_at, updated_at
		FROM negotiations
		WHERE status = 'approved'
		  AND formalization_status = 'pending_aditivo'
		  AND approved_at <= $1
		ORDER BY approved_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, approvedBefore, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list expirable negotiations")
	}
	defer rows.Close()

	negotiations := make([]*Negotiation, 0)
	for rows.Next() {
		n := &Negotiation{}
		err := rows.Scan(
			&n.ID,
			&n.Title,
			&n.Description,
			&n.Status,
			&n.ApprovalLevel,
			&n.FormalizationStatus,
			&n.CreatorID,
			&n.ApprovedBy,
			&n.ApprovedAt,
			&n.RejectedBy,
			&n.RejectedAt,
			&n.ApprovalNotes,
			&n.ParentNegotiationID,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan negotiation")
		}
		negotiations = append(negotiations, n)
	}

	return negotiations, nil
}

// ── transaction helpers ───────────────────────────────────────────────────────

// updateNegotiationTx applies the transition only while the row still holds
// the status the caller read. The lock serializes racing transitions; this
// predicate makes the loser fail instead of re-applying the same transition
// over already-committed state.
func updateNegotiationTx(ctx context.Context, tx pgx.Tx, n *Negotiation, prior Status) error {
	query := `
		UPDATE negotiations
		SET status = $2::negotiation_status,
		    approval_level = $3,
		    formalization_status = $4,
		    approved_by = $5,
		    approved_at = $6,
		    rejected_by = $7,
		    rejected_at = $8,
		    approval_notes = $9,
		    updated_at = NOW()
		WHERE id = $1 AND status = $10::negotiation_status
	`
	tag, err := tx.Exec(ctx, query,
		n.ID,
		n.Status,
		n.ApprovalLevel,
		n.FormalizationStatus,
		n.ApprovedBy,
		n.ApprovedAt,
		n.RejectedBy,
		n.RejectedAt,
		n.ApprovalNotes,
		prior,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update negotiation")
	}
	if tag.RowsAffected() == 0 {
		return errors.InvalidState(fmt.Sprintf("negotiation is no longer in status %q", prior))
	}
	return nil
}

func applyForkTx(ctx context.Context, tx pgx.Tx, fork *ForkPlan) error {
	query := `
		INSERT INTO negotiations (id, title, description, status, creator_id, parent_negotiation_id)
		VALUES ($1, $2, $3, $4::negotiation_status, $5, $6)
		RETURNING created_at, updated_at
	`
	n := fork.Negotiation
	err := tx.QueryRow(ctx, query,
		n.ID,
		n.Title,
		n.Description,
		n.Status,
		n.CreatorID,
		n.ParentNegotiationID,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create forked negotiation")
	}

	// Reassign unresolved items to the successor. Ownership moves; rows are
	// never duplicated.
	reassign := `
		UPDATE negotiation_items
		SET negotiation_id = $1,
		    status = 'pending'::negotiation_item_status,
		    approved_value = NULL,
		    responded_at = NULL,
		    updated_at = NOW()
		WHERE id = ANY($2::uuid[])
	`
	tag, err := tx.Exec(ctx, reassign, n.ID, fork.ItemIDs)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to reassign forked items")
	}
	if int(tag.RowsAffected()) != len(fork.ItemIDs) {
		return errors.New(errors.ErrCodeInternal, "fork item reassignment count mismatch")
	}

	if fork.History != nil {
		if err := insertHistoryTx(ctx, tx, fork.History); err != nil {
			return err
		}
	}

	if fork.Audit != nil {
		if err := insertAuditTx(ctx, tx, fork.Audit); err != nil {
			return err
		}
	}

	return nil
}

func insertItemTx(ctx context.Context, tx pgx.Tx, item *NegotiationItem) error {
	query := `
		INSERT INTO negotiation_items (negotiation_id, procedure_id, proposed_value, status)
		VALUES ($1, $2, $3, $4::negotiation_item_status)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		item.NegotiationID,
		item.ProcedureID,
		item.ProposedValue,
		item.Status,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create negotiation item")
	}
	return nil
}
