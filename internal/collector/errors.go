package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited means the provider asked us to slow down. Callers may retry.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoData means the provider has no history for the symbol.
	ErrNoData = errors.New("no data found")
)

// StatusError is a non-success HTTP response from a data provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRetryable reports whether err is worth retrying after a pause.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
