package cluster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPlanLayout tests worker-count policy and validation
func TestPlanLayout(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		workers     int
		wantWorkers int
		wantErr     error
	}{
		{name: "minimum group", size: 3, wantWorkers: 1},
		{name: "four ranks keep one worker", size: 4, wantWorkers: 1},
		{name: "five ranks get two workers", size: 5, wantWorkers: 2},
		{name: "large group stays at two", size: 16, wantWorkers: 2},
		{name: "explicit worker count", size: 8, workers: 5, wantWorkers: 5},
		{name: "too small", size: 2, wantErr: ErrGroupTooSmall},
		{name: "empty group", size: 0, wantErr: ErrGroupTooSmall},
		{name: "workers leave no client", size: 4, workers: 3, wantErr: ErrWorkerCount},
		{name: "negative workers", size: 4, workers: -1, wantErr: ErrWorkerCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := PlanLayout(tt.size, tt.workers)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWorkers, layout.Workers)
			assert.Equal(t, tt.size, layout.Size)
			assert.GreaterOrEqual(t, layout.Clients(), 1)
		})
	}
}

// TestLayoutRoles tests that ranks are partitioned without overlap
func TestLayoutRoles(t *testing.T) {
	layout, err := PlanLayout(6, 0)
	require.NoError(t, err)

	assert.Equal(t, []Rank{1, 2}, layout.WorkerRanks())
	assert.Equal(t, []Rank{3, 4, 5}, layout.ClientRanks())
	assert.Equal(t, Rank(3), layout.FirstClient())

	assert.Equal(t, RoleDispatcher, layout.RoleOf(0))
	assert.Equal(t, RoleWorker, layout.RoleOf(2))
	assert.Equal(t, RoleClient, layout.RoleOf(5))

	for r := Rank(0); r < Rank(layout.Size); r++ {
		assert.False(t, layout.IsWorker(r) && layout.IsClient(r), "rank %d is both worker and client", r)
	}
	assert.False(t, layout.IsClient(6))
	assert.False(t, layout.IsClient(0))
}
