package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffAuditValues(t *testing.T) {
	tests := []struct {
		name   string
		before map[string]any
		after  map[string]any
		want   []string
	}{
		{
			name:   "no change yields empty diff",
			before: map[string]any{"title": "Cardiology", "status": "draft"},
			after:  map[string]any{"title": "Cardiology", "status": "draft"},
			want:   nil,
		},
		{
			name:   "changed field only",
			before: map[string]any{"title": "Cardiology", "status": "draft"},
			after:  map[string]any{"title": "Cardiology", "status": "submitted"},
			want:   []string{"status"},
		},
		{
			name:   "added field",
			before: map[string]any{"status": "submitted"},
			after:  map[string]any{"status": "approved", "approved_by": "user-b"},
			want:   []string{"status", "approved_by"},
		},
		{
			name:   "removed field",
			before: map[string]any{"status": "submitted", "approval_level": "pending_approval"},
			after:  map[string]any{"status": "approved"},
			want:   []string{"status", "approval_level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := DiffAuditValues(tt.before, tt.after)

			assert.Len(t, changes, len(tt.want))
			for _, field := range tt.want {
				assert.Contains(t, changes, field)
			}
		})
	}
}

func TestDiffAuditValuesBeforeAfterPair(t *testing.T) {
	changes := DiffAuditValues(
		map[string]any{"status": "draft"},
		map[string]any{"status": "submitted"},
	)

	require.Contains(t, changes, "status")
	assert.Equal(t, "draft", changes["status"].Before)
	assert.Equal(t, "submitted", changes["status"].After)
}

func TestBuildAuditEntryEmptyDiff(t *testing.T) {
	vals := map[string]any{"status": "draft"}
	entry := buildAuditEntry("neg-1", "user-a", "update", vals, vals)

	// Empty diff must produce no audit record at all.
	assert.Nil(t, entry)
}
