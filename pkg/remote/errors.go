/*
Package remote talks to the labeling and suggestion services.

Both collaborators sit across the network, so every call takes a context
and every failure is classified before it reaches the UI layer: a timeout
is a reportable error, a user-triggered cancellation is silent, and a
malformed payload degrades to an empty result with a warning. Nothing in
this package panics on remote misbehavior.
*/
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed call for the UI layer.
type Kind int

const (
	// KindOther covers transport and server errors; reportable.
	KindOther Kind = iota
	// KindTimeout means the deadline elapsed; reportable, but distinct
	// from a server failure in user-facing copy.
	KindTimeout
	// KindCancelled means the caller superseded the request; silent.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	}
	return "error"
}

// Classify maps an error from Label or Suggest onto its Kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindOther
	}
}

// StatusError carries a non-2xx HTTP status up to the caller.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote service returned status %d", e.Code)
}
