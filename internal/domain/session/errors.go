package session

import "fmt"

// LookupFailure reports that the identity service could not turn a
// credential pair into a Session: transport error, non-success status or an
// unusable response body. It is recoverable: the page load continues
// unauthenticated.
type LookupFailure struct {
	Identifier string
	Status     int // HTTP status, 0 for transport errors
	Err        error
}

// Error implements error.
func (f *LookupFailure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("identity lookup for %q failed with status %d: %v", f.Identifier, f.Status, f.Err)
	}
	return fmt.Sprintf("identity lookup for %q failed: %v", f.Identifier, f.Err)
}

// Unwrap returns the underlying cause.
func (f *LookupFailure) Unwrap() error {
	return f.Err
}
