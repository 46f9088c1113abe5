package insight

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the job pipeline.
var (
	// ErrNotFound indicates an unknown job id at load or check time.
	ErrNotFound = errors.New("job not found")
	// ErrConflict indicates a versioned write lost to a concurrent writer,
	// or a create hit an existing id.
	ErrConflict = errors.New("job version conflict")
	// ErrUnavailable indicates transient loss of connectivity to the job
	// store; job state is indeterminate and callers must not assume retries.
	ErrUnavailable = errors.New("job store unavailable")
	// ErrNoReviews indicates the scrape phase returned an empty review list.
	// An empty result is never marked complete.
	ErrNoReviews = errors.New("no reviews found")
)

// ValidationError reports a missing or empty required submission field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// IsValidation reports whether err is a submission validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
