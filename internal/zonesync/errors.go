package zonesync

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a zone or record does not exist remotely.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a zone that already exists.
	ErrConflict = errors.New("already exists")
	// ErrAuth is returned when the provider rejects the credentials. It is
	// fatal for a run.
	ErrAuth = errors.New("authentication failed")
)

// TransportError wraps a failure to reach the local nameserver or the provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is an unexpected provider response. Kind, when set, is one of
// the sentinel errors so callers can use errors.Is.
type StatusError struct {
	Op     string
	Status int
	Body   string
	Kind   error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// StatusOf extracts the provider status and message carried by err. Errors
// that never reached the provider report status 0.
func StatusOf(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, se.Body
	}
	return 0, err.Error()
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsAuth(err error) bool     { return errors.Is(err, ErrAuth) }

// IsTransport reports whether err is a network level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// PartialApplyError reports that some record mutations of a zone failed.
type PartialApplyError struct {
	Zone   string
	Failed int
	Total  int
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("zone %s: %d of %d record change(s) failed", e.Zone, e.Failed, e.Total)
}
