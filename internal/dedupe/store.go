// Package dedupe records which (source, id) pairs have already been handled.
// Only the event router reads or writes a Store.
package dedupe

import (
	"context"
	"time"

	"github.com/Maycon01282/bot2/internal/domain/event"
)

type Key struct {
	Source event.Source
	ID     string
}

func KeyOf(ev event.Event) Key {
	return Key{Source: ev.Source, ID: ev.ID}
}

func (k Key) String() string {
	return string(k.Source) + ":" + k.ID
}

// Store is a bounded-recency set of processed keys.
type Store interface {
	// Seen reports whether key was recorded within the retention window.
	Seen(ctx context.Context, key Key) (bool, error)
	// Record marks key as processed at the given time.
	Record(ctx context.Context, key Key, at time.Time) error
}

// Evictor is implemented by stores that do not expire entries on their own.
type Evictor interface {
	Evict(ctx context.Context, before time.Time) (int, error)
}

type ClaimState int

const (
	// ClaimAcquired means the caller now owns the key until it records or
	// releases it, or the lease runs out.
	ClaimAcquired ClaimState = iota
	// ClaimDone means the key was already recorded within the window.
	ClaimDone
	// ClaimBusy means another owner holds a live lease on the key.
	ClaimBusy
)

func (s ClaimState) String() string {
	switch s {
	case ClaimAcquired:
		return "acquired"
	case ClaimDone:
		return "done"
	case ClaimBusy:
		return "busy"
	}
	return "unknown"
}

// Claimer is implemented by stores that several relay instances share. Claim
// atomically takes ownership of a key that is neither recorded nor leased;
// Record turns a held claim into a record and Release gives it up.
type Claimer interface {
	Claim(ctx context.Context, key Key, at time.Time, lease time.Duration) (ClaimState, error)
	Release(ctx context.Context, key Key) error
}
