// Package extract fetches source documents, normalizes them to clean text,
// and classifies failures. Workers never touch the snapshot store; callers
// hold the fetch lock and decide what to do with the result.
package extract

import (
	"errors"
	"fmt"
)

// ErrorKind partitions fetch failures by what the caller should do next.
type ErrorKind string

const (
	// KindUnreachable covers timeouts, connection failures, and 5xx/429
	// responses that survived the retry budget. Worth trying again later.
	KindUnreachable ErrorKind = "unreachable"
	// KindDead covers 4xx responses. The URL will not recover this run.
	KindDead ErrorKind = "dead"
	// KindMalformed covers content that survived the transport but could
	// not be normalized to text. Retrying will not help.
	KindMalformed ErrorKind = "malformed"
)

// FetchError is the classified failure for one URL.
type FetchError struct {
	URL      string
	Kind     ErrorKind
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Terminal reports whether retrying the same URL this run is pointless.
func (e *FetchError) Terminal() bool {
	return e.Kind == KindDead || e.Kind == KindMalformed
}

// KindOf extracts the failure kind from any error chain. Unclassified
// errors count as unreachable so callers err on the retryable side.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnreachable
}
