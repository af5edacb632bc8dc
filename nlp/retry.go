package nlp

import (
	"context"
	"log"
	"time"

	"github.com/avast/retry-go"
)

const (
	SHORT_DELAY     = 10 * time.Millisecond
	LONG_DELAY      = 2 * time.Second
	_RETRY_ATTEMPTS = 3
)

// RetryOnFail runs original_func until it succeeds, the attempts run out or ctx is done.
// The last error is returned when every attempt failed.
func RetryOnFail[T any](ctx context.Context, original_func func() (T, error), attempts uint, delay time.Duration) (T, error) {
	var res T
	if attempts == 0 {
		attempts = _RETRY_ATTEMPTS
	}
	err := retry.Do(
		func() error {
			var err error
			res, err = original_func()
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[retry] attempt %d failed. %v\n", n+1, err)
		}),
	)
	return res, err
}
