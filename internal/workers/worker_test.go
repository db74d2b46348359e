package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/prospect/internal/models"
)

// TestRunWithTimeout_Completes tests that fast work returns its result
func TestRunWithTimeout_Completes(t *testing.T) {
	data, err := runWithTimeout(context.Background(), "job_1", time.Second, func(ctx context.Context) (any, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", data)
}

// TestRunWithTimeout_PropagatesError tests error passthrough
func TestRunWithTimeout_PropagatesError(t *testing.T) {
	wantErr := errors.New("scrape exploded")
	_, err := runWithTimeout(context.Background(), "job_1", time.Second, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	assert.Equal(t, wantErr, err)
}

// TestRunWithTimeout_Expiry tests that slow work is abandoned with a
// timeout-classified error
func TestRunWithTimeout_Expiry(t *testing.T) {
	started := time.Now()
	_, err := runWithTimeout(context.Background(), "job_1", 20*time.Millisecond, func(ctx context.Context) (any, error) {
		time.Sleep(time.Second)
		return "too late", nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	var jobErr *models.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "job_1", jobErr.JobID)

	// The abandoned unit is terminal for retry purposes.
	assert.False(t, IsRetryable(err))
}
