package provenance

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPage   = errors.New("provenance: invalid page")
	ErrNotFound      = errors.New("provenance: change log not found")
	ErrMalformedData = errors.New("provenance: malformed data")
)

// RequestFailedError wraps a failed call to the remote hosting API. Status is
// zero when the request never produced an HTTP response.
type RequestFailedError struct {
	Status int
	URL    string
	Err    error
}

func (e *RequestFailedError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("GitHub API request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("GitHub API request failed with status %d", e.Status)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// IsRequestFailed reports whether err carries a RequestFailedError.
func IsRequestFailed(err error) bool {
	var rf *RequestFailedError
	return errors.As(err, &rf)
}

// IsRetryable reports whether a region that failed with err should be tried
// again on a later scan pass. NotFound and InvalidPage are terminal, anything
// else is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidPage)
}
