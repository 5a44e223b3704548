package router

import (
	"errors"
	"fmt"

	"github.com/Maycon01282/bot2/internal/domain/event"
)

var (
	// ErrUnroutable means no route matches the event. Redelivery cannot help.
	ErrUnroutable = errors.New("unroutable event")
	// ErrHandlerFailed is matched by every *HandlerError.
	ErrHandlerFailed = errors.New("handler failed")
	// ErrStoreUnavailable means the dedupe store could not be consulted.
	ErrStoreUnavailable = errors.New("dedupe store unavailable")
	// ErrInFlight means another relay instance kept the event claimed for
	// longer than the router was willing to wait.
	ErrInFlight = errors.New("event in flight on another instance")
)

// HandlerError reports a handler (or sink) failure. The event was not
// recorded as processed, so a redelivery will be handled again.
type HandlerError struct {
	Source  event.Source
	Kind    event.Kind
	EventID string
	Route   string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("route %s failed for %s event %s: %v", e.Route, e.Source, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Is(target error) bool { return target == ErrHandlerFailed }
