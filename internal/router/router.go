// Package router dispatches inbound events to exactly one handler and makes
// redeliveries of an already handled event a no-op.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/domain/event"
)

type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeDeduped    Outcome = "deduped"
	OutcomeUnroutable Outcome = "unroutable"
	OutcomeFailed     Outcome = "failed"
)

const (
	defaultClaimLease = 30 * time.Second
	defaultClaimPoll  = 100 * time.Millisecond
	defaultClaimWait  = 10 * time.Second
)

type Router struct {
	table  *Table
	store  dedupe.Store
	logger *slog.Logger
	now    func() time.Time

	// Used only when store is a dedupe.Claimer.
	claimLease time.Duration
	claimPoll  time.Duration
	claimWait  time.Duration

	// inflight holds one channel per key currently being handled; it is
	// closed once the outcome for that key is settled.
	mu       sync.Mutex
	inflight map[dedupe.Key]chan struct{}
}

type Option func(*Router)

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithClaimLease sets how long a shared-store claim lives if its owner never
// records or releases it.
func WithClaimLease(lease time.Duration) Option {
	return func(r *Router) { r.claimLease = lease }
}

// WithClaimPolling sets how often a key held by another instance is re-tried
// and how long to keep trying before failing with ErrInFlight.
func WithClaimPolling(interval, wait time.Duration) Option {
	return func(r *Router) {
		r.claimPoll = interval
		r.claimWait = wait
	}
}

func New(table *Table, store dedupe.Store, opts ...Option) *Router {
	r := &Router{
		table:      table,
		store:      store,
		logger:     slog.Default(),
		now:        time.Now,
		claimLease: defaultClaimLease,
		claimPoll:  defaultClaimPoll,
		claimWait:  defaultClaimWait,
		inflight:   make(map[dedupe.Key]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route handles ev at most once per (source, id). Deduped and completed
// events return a nil error. Unroutable events return ErrUnroutable and leave
// the dedupe state untouched. Handler failures return a *HandlerError and are
// not recorded, so a redelivery is handled again.
func (r *Router) Route(ctx context.Context, ev event.Event) (Outcome, error) {
	outcome, err := r.route(ctx, ev)
	eventsRouted.WithLabelValues(string(ev.Source), string(outcome)).Inc()

	log := r.logger.With("source", ev.Source, "kind", ev.Kind, "event_id", ev.ID)
	switch outcome {
	case OutcomeCompleted:
		log.Info("event handled")
	case OutcomeDeduped:
		log.Info("duplicate event skipped")
	case OutcomeUnroutable:
		log.Warn("no route for event", "text", ev.Payload.Text, "notification_type", ev.Payload.NotificationType)
	case OutcomeFailed:
		log.Error("event processing failed", "error", err)
	}
	return outcome, err
}

func (r *Router) route(ctx context.Context, ev event.Event) (Outcome, error) {
	key := dedupe.KeyOf(ev)

	release, err := r.claim(ctx, key)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("wait for in-flight %s: %w", key, err)
	}
	defer release()

	claimer, shared := r.store.(dedupe.Claimer)
	if shared {
		state, err := r.claimShared(ctx, claimer, key)
		if err != nil {
			return OutcomeFailed, err
		}
		if state == dedupe.ClaimDone {
			return OutcomeDeduped, nil
		}
	} else {
		seen, err := r.store.Seen(ctx, key)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if seen {
			return OutcomeDeduped, nil
		}
	}

	entry, ok := r.table.Match(ev)
	if !ok {
		if shared {
			r.releaseShared(ctx, claimer, key)
		}
		return OutcomeUnroutable, fmt.Errorf("%w: %s %q", ErrUnroutable, ev.Kind, matchText(ev))
	}

	started := time.Now()
	err = invoke(ctx, entry.Handler, ev)
	handlerDuration.WithLabelValues(string(ev.Source), string(ev.Kind)).Observe(time.Since(started).Seconds())
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if shared {
			r.releaseShared(ctx, claimer, key)
		}
		return OutcomeFailed, &HandlerError{
			Source:  ev.Source,
			Kind:    ev.Kind,
			EventID: ev.ID,
			Route:   entry.String(),
			Err:     err,
		}
	}

	// The side effect already happened; a late cancellation must not stop
	// the record from being written.
	if err := r.store.Record(context.WithoutCancel(ctx), key, r.now()); err != nil {
		recordErrors.Inc()
		r.logger.Error("failed to record processed event", "key", key.String(), "error", err)
	}
	return OutcomeCompleted, nil
}

// claim makes the caller the only goroutine handling key. Concurrent callers
// for the same key wait for the holder to release, then re-check the store.
// The mutex only guards the map; no I/O happens while it is held.
func (r *Router) claim(ctx context.Context, key dedupe.Key) (func(), error) {
	for {
		r.mu.Lock()
		done, busy := r.inflight[key]
		if !busy {
			done = make(chan struct{})
			r.inflight[key] = done
			r.mu.Unlock()
			return func() {
				r.mu.Lock()
				delete(r.inflight, key)
				r.mu.Unlock()
				close(done)
			}, nil
		}
		r.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// claimShared takes the store-wide claim on key. While another instance
// holds it, the claim is retried until it settles, ctx ends or claimWait
// passes.
func (r *Router) claimShared(ctx context.Context, c dedupe.Claimer, key dedupe.Key) (dedupe.ClaimState, error) {
	deadline := time.NewTimer(r.claimWait)
	defer deadline.Stop()

	for {
		state, err := c.Claim(ctx, key, r.now(), r.claimLease)
		if err != nil {
			return state, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if state != dedupe.ClaimBusy {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, fmt.Errorf("wait for in-flight %s: %w", key, ctx.Err())
		case <-deadline.C:
			return state, fmt.Errorf("%w: %s", ErrInFlight, key)
		case <-time.After(r.claimPoll):
		}
	}
}

// releaseShared gives the claim back so a redelivery can be handled. If the
// release fails the claim lapses after claimLease.
func (r *Router) releaseShared(ctx context.Context, c dedupe.Claimer, key dedupe.Key) {
	if err := c.Release(context.WithoutCancel(ctx), key); err != nil {
		releaseErrors.Inc()
		r.logger.Warn("failed to release claim", "key", key.String(), "error", err)
	}
}

func invoke(ctx context.Context, h Handler, ev event.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.Handle(ctx, ev)
}

func matchText(ev event.Event) string {
	if ev.Kind == event.KindPaymentNotification {
		return ev.Payload.NotificationType
	}
	return ev.Payload.Text
}
