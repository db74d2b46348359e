// -----------------------------------------------------------------------
// Worker loop shared machinery - timeout racing and retry pacing
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"time"

	"github.com/ternarybob/prospect/internal/models"
)

// unitOfWork is one job attempt's executable body
type unitOfWork func(ctx context.Context) (any, error)

// unitResult carries the outcome across the timeout race
type unitResult struct {
	data any
	err  error
}

// runWithTimeout races fn against a hard deadline. On expiry the work is
// abandoned, not cancelled: the underlying call keeps running in its
// goroutine, the worker just stops waiting on it. The returned error wraps
// models.ErrTimeout so the retry classifier treats it as terminal.
func runWithTimeout(ctx context.Context, jobID string, timeout time.Duration, fn unitOfWork) (any, error) {
	done := make(chan unitResult, 1)

	go func() {
		data, err := fn(ctx)
		done <- unitResult{data: data, err: err}
	}()

	select {
	case res := <-done:
		return res.data, res.err
	case <-time.After(timeout):
		return nil, models.NewJobError(models.ErrTimeout, jobID, "unit of work exceeded "+timeout.String())
	}
}

// retryBackoff computes the linear backoff delay before retry N (1-based)
func retryBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}
