package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/repository"
)

// fakeFormalizationStore holds one negotiation and mirrors the guarded
// SetFormalized update.
type fakeFormalizationStore struct {
	mu          sync.Mutex
	negotiation *repository.Negotiation
	history     []*repository.ApprovalHistoryEntry
	getErr      error
	setErr      error
}

func (s *fakeFormalizationStore) GetByID(ctx context.Context, id string) (*repository.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.negotiation == nil || s.negotiation.ID != id {
		return nil, errors.NotFound("negotiation", id)
	}
	n := *s.negotiation
	return &n, nil
}

func (s *fakeFormalizationStore) SetFormalized(ctx context.Context, id string, history *repository.ApprovalHistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	n := s.negotiation
	if n == nil || n.ID != id || n.FormalizationStatus == nil ||
		*n.FormalizationStatus != repository.FormalizationPendingAditivo {
		return false, nil
	}
	formalized := repository.FormalizationFormalized
	n.FormalizationStatus = &formalized
	s.history = append(s.history, history)
	return true, nil
}

func approvedNegotiation() *repository.Negotiation {
	pending := repository.FormalizationPendingAditivo
	return &repository.Negotiation{
		ID:                  "neg-1",
		Title:               "Cardiology procedures 2026",
		Status:              repository.StatusApproved,
		FormalizationStatus: &pending,
		CreatorID:           "user-a",
	}
}

func TestFormalizationTaskFormalizes(t *testing.T) {
	store := &fakeFormalizationStore{negotiation: approvedNegotiation()}
	dispatcher := &countingDispatcher{}
	task := NewFormalizationTask("neg-1", store, dispatcher, logger.NewNop())

	require.NoError(t, task.Execute(context.Background()))

	require.NotNil(t, store.negotiation.FormalizationStatus)
	assert.Equal(t, repository.FormalizationFormalized, *store.negotiation.FormalizationStatus)
	require.Len(t, store.history, 1)
	assert.Equal(t, repository.ActionFormalize, store.history[0].Action)
	assert.Equal(t, "system", store.history[0].UserID)

	// Creator and contracts role are told.
	assert.Equal(t, 1, dispatcher.userSends)
	assert.Equal(t, 1, dispatcher.roleSends)
}

// A replayed execution finds the aditivo already advanced and does nothing.
func TestFormalizationTaskIdempotentOnReplay(t *testing.T) {
	store := &fakeFormalizationStore{negotiation: approvedNegotiation()}
	dispatcher := &countingDispatcher{}
	task := NewFormalizationTask("neg-1", store, dispatcher, logger.NewNop())

	require.NoError(t, task.Execute(context.Background()))
	require.NoError(t, task.Execute(context.Background()))

	assert.Len(t, store.history, 1)
	assert.Equal(t, 1, dispatcher.userSends)
	assert.Equal(t, 1, dispatcher.roleSends)
}

func TestFormalizationTaskSkipsExpiredTarget(t *testing.T) {
	n := approvedNegotiation()
	n.Status = repository.StatusExpired
	n.FormalizationStatus = nil
	store := &fakeFormalizationStore{negotiation: n}
	dispatcher := &countingDispatcher{}
	task := NewFormalizationTask("neg-1", store, dispatcher, logger.NewNop())

	require.NoError(t, task.Execute(context.Background()))

	assert.Empty(t, store.history)
	assert.Equal(t, 0, dispatcher.userSends)
}

func TestFormalizationTaskSkipsMissingTarget(t *testing.T) {
	store := &fakeFormalizationStore{}
	dispatcher := &countingDispatcher{}
	task := NewFormalizationTask("neg-gone", store, dispatcher, logger.NewNop())

	// A deleted target is not a retryable failure.
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 0, dispatcher.roleSends)
}

// A failing write re-raises for platform retry and tells operations.
func TestFormalizationTaskReportsFailures(t *testing.T) {
	store := &fakeFormalizationStore{
		negotiation: approvedNegotiation(),
		setErr:      errors.New(errors.ErrCodeInternal, "connection reset"),
	}
	dispatcher := &countingDispatcher{}
	task := NewFormalizationTask("neg-1", store, dispatcher, logger.NewNop())

	err := task.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, dispatcher.roleSends)
}
