// Package store owns the engine's view of upstream events: two in-memory
// mappings (id → latest record, id → last observed upstream modification
// time) backed by the durable events table.
//
// Map mutations take effect immediately; the matching row writes are
// staged and flushed in a single transaction by Commit at the end of a
// reconciliation tick. A failed flush keeps the staged batch, so the next
// tick's Commit retries it — the table converges to the maps without a
// re-recall.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ifi-progsys/sam/pkg/clock"
	"github.com/ifi-progsys/sam/pkg/models"
)

type opKind int

const (
	opUpsert opKind = iota
	opRemove
)

type op struct {
	kind  opKind
	event models.Event
	id    string
}

// Store is the event store. All methods are safe for concurrent use,
// though in practice only the engine's tick goroutine mutates it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu          sync.RWMutex
	known       map[string]models.Event
	lastUpdated map[string]time.Time
	pending     []op
}

// New creates a store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{
		db:          db,
		logger:      slog.Default().With("component", "store"),
		known:       make(map[string]models.Event),
		lastUpdated: make(map[string]time.Time),
	}
}

// Recall loads the events table into both maps. Called once at startup,
// before the first tick. Returns the number of recalled events.
func (s *Store) Recall(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, description, startAt, updatedAt, place, id, link FROM events`)
	if err != nil {
		return 0, fmt.Errorf("query events table: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for rows.Next() {
		var ev models.Event
		var startAt, updatedAt string
		if err := rows.Scan(&ev.Title, &ev.Description, &startAt, &updatedAt,
			&ev.Place, &ev.ID, &ev.Link); err != nil {
			return count, fmt.Errorf("scan event row: %w", err)
		}
		if ev.StartAt, err = clock.Parse(startAt); err != nil {
			return count, fmt.Errorf("recall event %s: %w", ev.ID, err)
		}
		if ev.UpdatedAt, err = clock.Parse(updatedAt); err != nil {
			return count, fmt.Errorf("recall event %s: %w", ev.ID, err)
		}

		s.known[ev.ID] = ev
		s.lastUpdated[ev.ID] = ev.UpdatedAt
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterate events table: %w", err)
	}

	s.logger.Info("Recalled events from database", "count", count)
	return count, nil
}

// Known returns the latest record for an id.
func (s *Store) Known(id string) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.known[id]
	return ev, ok
}

// LastUpdated returns the last observed upstream modification time for an id.
func (s *Store) LastUpdated(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastUpdated[id]
	return t, ok
}

// All returns a copy of every tracked record, for the expiration sweep.
func (s *Store) All() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, 0, len(s.known))
	for _, ev := range s.known {
		out = append(out, ev)
	}
	return out
}

// Upsert records the latest version of an event in both maps and stages
// the row write for the next Commit.
func (s *Store) Upsert(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[ev.ID] = ev
	s.lastUpdated[ev.ID] = ev.UpdatedAt
	s.pending = append(s.pending, op{kind: opUpsert, event: ev})
}

// Remove forgets an event: both map entries go immediately, the row
// delete is staged for the next Commit.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.known, id)
	delete(s.lastUpdated, id)
	s.pending = append(s.pending, op{kind: opRemove, id: id})
}

// Snapshot returns the number of tracked events, for diagnostics.
func (s *Store) Snapshot() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.known)
}

// Pending returns the number of staged row writes, for diagnostics.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Commit flushes all staged row writes in one transaction, in staging
// order. On failure the batch is kept and the error returned; the caller
// retries at the next tick's Commit.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range s.pending {
		switch o.kind {
		case opUpsert:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO events (title, description, startAt, updatedAt, place, id, link)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (id) DO UPDATE SET
				   title = EXCLUDED.title,
				   description = EXCLUDED.description,
				   startAt = EXCLUDED.startAt,
				   updatedAt = EXCLUDED.updatedAt,
				   place = EXCLUDED.place,
				   link = EXCLUDED.link`,
				o.event.Title, o.event.Description,
				clock.Format(o.event.StartAt), clock.Format(o.event.UpdatedAt),
				o.event.Place, o.event.ID, o.event.Link)
			if err != nil {
				return fmt.Errorf("upsert event %s: %w", o.event.ID, err)
			}
		case opRemove:
			_, err = tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, o.id)
			if err != nil {
				return fmt.Errorf("delete event %s: %w", o.id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.pending = nil
	return nil
}
