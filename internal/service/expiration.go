package service

import (
	"context"
	"time"

	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// SweepResult reports one negotiation visited by a sweep.
type SweepResult struct {
	NegotiationID string
	Title         string
	Expired       bool
	Err           error
}

// SweepSummary totals a sweep run.
type SweepSummary struct {
	Scanned int
	Expired int
	Failed  int
}

// SweepExpired pages through approved negotiations whose aditivo has been
// pending longer than threshold and expires each in its own transaction.
// One negotiation's failure never aborts the rest; failures are reported
// through onResult and counted. onResult may be nil.
func (s *NegotiationService) SweepExpired(ctx context.Context, threshold time.Duration, pageSize int, onResult func(SweepResult)) (SweepSummary, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	cutoff := time.Now().Add(-threshold)
	summary := SweepSummary{}

	// Expired rows drop out of the eligible set, so only failed rows keep
	// their position; offsetting by the failure count avoids skipping.
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		page, err := s.store.ListExpirable(ctx, cutoff, pageSize, summary.Failed)
		if err != nil {
			return summary, err
		}
		if len(page) == 0 {
			return summary, nil
		}

		for _, n := range page {
			summary.Scanned++
			result := SweepResult{NegotiationID: n.ID, Title: n.Title}

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

			ok, err := s.store.MarkExpired(ctx, n.ID, cutoff, history, audit)
			switch {
			case err != nil:
				summary.Failed++
				result.Err = err
				s.log.Error().Err(err).
					Str("negotiation_id", n.ID).
					Msg("Sweep failed to expire negotiation")
			case ok:
				summary.Expired++
				result.Expired = true
				s.log.Info().
					Str("negotiation_id", n.ID).
					Msg("Negotiation expired by sweep")
				s.publish(ctx, EventExpired, n, "system", nil)
			default:
				// A concurrent transition removed eligibility between the
				// listing and the guarded update.
				s.log.Debug().
					Str("negotiation_id", n.ID).
					Msg("Negotiation no longer eligible for expiration")
			}

			if onResult != nil {
				onResult(result)
			}
		}

		if len(page) < pageSize {
			return summary, nil
		}
	}
}
