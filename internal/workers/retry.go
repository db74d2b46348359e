package workers

import (
	"errors"
	"strings"

	"github.com/ternarybob/prospect/internal/models"
)

// transientPatterns is the single source of truth for default retryability
// of unclassified errors: an error whose text matches one of these is
// assumed transient.
var transientPatterns = []string{
	"timeout",
	"rate limit",
	"temporary",
	"network",
	"service unavailable",
}

// IsRetryable classifies an error for the in-place retry decision.
// Sentinel classifications take precedence; anything unclassified falls
// back to the transient text-pattern match.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, models.ErrTimeout):
		// A deadline breach is non-retryable by policy: a slow operation
		// is assumed likely to stay slow.
		return false
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrUnsupportedOperation):
		return false
	case errors.Is(err, models.ErrUnavailable),
		errors.Is(err, models.ErrRateLimitExceeded),
		errors.Is(err, models.ErrCapacityExceeded):
		return true
	}

	text := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

// isTimeout reports whether an error is a worker-level deadline breach
func isTimeout(err error) bool {
	return errors.Is(err, models.ErrTimeout)
}
