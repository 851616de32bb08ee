package generation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fleveque/stylelab/internal/model"
)

// ErrInvalidParams is wrapped by every validation failure. Such requests
// are rejected before any external call and should not be retried.
var ErrInvalidParams = errors.New("invalid generation parameters")

// RateLimitError means the model's request window is full.
type RateLimitError struct {
	Model      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %ds", e.Model, e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the wait up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// BatchFailedError reports a unit failure that aborted the batch. Results
// holds the units that completed before it.
type BatchFailedError struct {
	Completed int
	Total     int
	Err       error
	Results   []model.GenerationResult
}

func (e *BatchFailedError) Error() string {
	return fmt.Sprintf("batch failed after %d of %d units: %v", e.Completed, e.Total, e.Err)
}

func (e *BatchFailedError) Unwrap() error { return e.Err }
