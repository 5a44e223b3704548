package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/domain/inbox"
)

const stateDone = "done"

const schema = `
	CREATE TABLE IF NOT EXISTS processed_events (
		source       TEXT        NOT NULL,
		event_id     TEXT        NOT NULL,
		state        TEXT        NOT NULL DEFAULT 'done',
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		lease_until  TIMESTAMPTZ,
		PRIMARY KEY (source, event_id)
	);
	ALTER TABLE processed_events ADD COLUMN IF NOT EXISTS state TEXT NOT NULL DEFAULT 'done';
	ALTER TABLE processed_events ADD COLUMN IF NOT EXISTS lease_until TIMESTAMPTZ;
	CREATE INDEX IF NOT EXISTS processed_events_processed_at_idx ON processed_events (processed_at);
`

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InboxRepository stores processed (source, event_id) pairs. It implements
// dedupe.Store, dedupe.Claimer and dedupe.Evictor, so relays sharing the
// database handle each event once.
type InboxRepository struct {
	db  DB
	ttl time.Duration
	now func() time.Time
}

type InboxOption func(*InboxRepository)

// WithInboxClock overrides the time source behind the Seen and Evict cutoffs.
func WithInboxClock(now func() time.Time) InboxOption {
	return func(r *InboxRepository) { r.now = now }
}

func NewInboxRepository(db DB, ttl time.Duration, opts ...InboxOption) *InboxRepository {
	r := &InboxRepository{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InboxRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create processed_events: %w", err)
	}
	return nil
}

// cutoff is the oldest processed_at still inside the window. A zero TTL keeps
// records forever.
func (r *InboxRepository) cutoff(now time.Time) time.Time {
	if r.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(-r.ttl)
}

func (r *InboxRepository) Seen(ctx context.Context, key dedupe.Key) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM processed_events
			WHERE source = $1 AND event_id = $2 AND state = 'done' AND processed_at > $3
		)
	`

	var seen bool
	if err := r.db.QueryRow(ctx, query, string(key.Source), key.ID, r.cutoff(r.now())).Scan(&seen); err != nil {
		return false, fmt.Errorf("query processed event: %w", err)
	}
	return seen, nil
}

// Record upserts the key as done, replacing a held claim or a record that
// outlived the window.
func (r *InboxRepository) Record(ctx context.Context, key dedupe.Key, at time.Time) error {
	const query = `
		INSERT INTO processed_events (source, event_id, state, processed_at, lease_until)
		VALUES ($1, $2, 'done', $3, NULL)
		ON CONFLICT (source, event_id) DO UPDATE
		SET state = 'done', processed_at = EXCLUDED.processed_at, lease_until = NULL
	`

	if _, err := r.db.Exec(ctx, query, string(key.Source), key.ID, at); err != nil {
		return fmt.Errorf("insert processed event: %w", err)
	}
	return nil
}

// Claim inserts a processing row. An existing row is taken over only when its
// lease ran out or its record left the window.
func (r *InboxRepository) Claim(ctx context.Context, key dedupe.Key, at time.Time, lease time.Duration) (dedupe.ClaimState, error) {
	const claim = `
		INSERT INTO processed_events (source, event_id, state, processed_at, lease_until)
		VALUES ($1, $2, 'processing', $3, $4)
		ON CONFLICT (source, event_id) DO UPDATE
		SET state = 'processing', processed_at = EXCLUDED.processed_at, lease_until = EXCLUDED.lease_until
		WHERE (processed_events.state = 'processing' AND processed_events.lease_until <= $3)
		   OR (processed_events.state = 'done' AND processed_events.processed_at <= $5)
		RETURNING state
	`
	const current = `SELECT state FROM processed_events WHERE source = $1 AND event_id = $2`

	var state string
	err := r.db.QueryRow(ctx, claim, string(key.Source), key.ID, at, at.Add(lease), r.cutoff(at)).Scan(&state)
	if err == nil {
		return dedupe.ClaimAcquired, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return dedupe.ClaimBusy, fmt.Errorf("claim processed event: %w", err)
	}

	err = r.db.QueryRow(ctx, current, string(key.Source), key.ID).Scan(&state)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return dedupe.ClaimBusy, nil
	case err != nil:
		return dedupe.ClaimBusy, fmt.Errorf("query claim state: %w", err)
	case state == stateDone:
		return dedupe.ClaimDone, nil
	}
	return dedupe.ClaimBusy, nil
}

func (r *InboxRepository) Release(ctx context.Context, key dedupe.Key) error {
	const query = `DELETE FROM processed_events WHERE source = $1 AND event_id = $2 AND state = 'processing'`

	if _, err := r.db.Exec(ctx, query, string(key.Source), key.ID); err != nil {
		return fmt.Errorf("release processed event: %w", err)
	}
	return nil
}

// Evict drops records older than before. Claims are dropped only once their
// lease has run out.
func (r *InboxRepository) Evict(ctx context.Context, before time.Time) (int, error) {
	const query = `
		DELETE FROM processed_events
		WHERE processed_at < $1 AND (state = 'done' OR lease_until < $2)
	`

	tag, err := r.db.Exec(ctx, query, before, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete processed events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *InboxRepository) ListRecent(ctx context.Context, limit int) ([]*inbox.Record, error) {
	const query = `
		SELECT source, event_id, state, processed_at
		FROM processed_events
		ORDER BY processed_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query processed events: %w", err)
	}
	defer rows.Close()

	var records []*inbox.Record
	for rows.Next() {
		rec := &inbox.Record{}
		if err := rows.Scan(&rec.Source, &rec.EventID, &rec.State, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan processed event: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
