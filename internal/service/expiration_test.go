package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/repository"
)

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)

	// Three aged approvals, one fresh approval, one still submitted.
	aged := make([]*repository.Negotiation, 0, 3)
	for i := 0; i < 3; i++ {
		n := f.createSubmitted(t, 100)
		f.approveAndAge(t, n.ID, 40*24*time.Hour)
		aged = append(aged, n)
	}
	fresh := f.createSubmitted(t, 100)
	f.approveAndAge(t, fresh.ID, time.Hour)
	submitted := f.createSubmitted(t, 100)

	var results []SweepResult
	summary, err := f.svc.SweepExpired(context.Background(), 30*24*time.Hour, 2, func(r SweepResult) {
		results = append(results, r)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 3, summary.Expired)
	assert.Equal(t, 0, summary.Failed)
	assert.Len(t, results, 3)

	for _, n := range aged {
		stored, err := f.svc.GetNegotiation(context.Background(), n.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.StatusExpired, stored.Status)
		assert.Nil(t, stored.FormalizationStatus)
	}

	// Ineligible negotiations are untouched.
	storedFresh, err := f.svc.GetNegotiation(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, storedFresh.Status)

	storedSubmitted, err := f.svc.GetNegotiation(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusSubmitted, storedSubmitted.Status)
}

func TestSweepExpiredContinuesPastFailures(t *testing.T) {
	f := newFixture(t)

	first := f.createSubmitted(t, 100)
	f.approveAndAge(t, first.ID, 40*24*time.Hour)
	second := f.createSubmitted(t, 100)
	f.approveAndAge(t, second.ID, 40*24*time.Hour)
	third := f.createSubmitted(t, 100)
	f.approveAndAge(t, third.ID, 40*24*time.Hour)

	f.store.failExpire[second.ID] = errors.New(errors.ErrCodeInternal, "deadlock detected")

	var failed []string
	summary, err := f.svc.SweepExpired(context.Background(), 30*24*time.Hour, 2, func(r SweepResult) {
		if r.Err != nil {
			failed = append(failed, r.NegotiationID)
		}
	})
	require.NoError(t, err)

	// One failure is reported and skipped; the others still expire.
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Expired)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{second.ID}, failed)

	for _, id := range []string{first.ID, third.ID} {
		stored, err := f.svc.GetNegotiation(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, repository.StatusExpired, stored.Status)
	}
	storedSecond, err := f.svc.GetNegotiation(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, storedSecond.Status)
}

func TestSweepExpiredEmptySet(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.SweepExpired(context.Background(), 30*24*time.Hour, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{}, summary)
}
