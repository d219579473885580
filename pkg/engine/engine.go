// Package engine is the event synchronization core: it polls peoply.app
// on a fixed cadence, diffs discovered events against the persisted view,
// and queues NEW/UPDATED changes for the presentation collaborator.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ifi-progsys/sam/pkg/clock"
	"github.com/ifi-progsys/sam/pkg/database"
	"github.com/ifi-progsys/sam/pkg/models"
	"github.com/ifi-progsys/sam/pkg/peoply"
)

// DefaultInterval is the tick cadence.
const DefaultInterval = 60 * time.Second

// stopCommitTimeout bounds the final durable flush during Stop.
const stopCommitTimeout = 10 * time.Second

// EventStore is the persistence surface the engine reconciles against.
// Implemented by pkg/store; tests substitute an in-memory fake.
type EventStore interface {
	Recall(ctx context.Context) (int, error)
	Known(id string) (models.Event, bool)
	LastUpdated(id string) (time.Time, bool)
	All() []models.Event
	Upsert(ev models.Event)
	Remove(id string)
	Snapshot() int
	Commit(ctx context.Context) error
}

// Options configures an Engine.
type Options struct {
	// OrganizationName is the peoply.app organization slug to mirror.
	OrganizationName string
	Client           *peoply.Client
	Store            EventStore
	// DB is the database handle the engine owns and closes on Stop.
	// May be nil when the store is not database-backed (tests).
	DB    *database.Client
	Clock clock.Clock
	// Interval overrides the tick cadence; zero means DefaultInterval.
	Interval time.Duration
}

// Engine drives the fetch/reconcile/queue cycle. Construct with New,
// then Start; the presentation collaborator calls only DrainOutbound,
// Snapshot, and QueueDepth.
type Engine struct {
	orgName  string
	orgID    string
	client   *peoply.Client
	store    EventStore
	db       *database.Client
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger

	// watermark is the afterDate checkpoint for the next fetch. Owned by
	// the tick goroutine after Start.
	watermark string

	queueMu  sync.Mutex
	queue    []models.Change
	queuedAt map[string]int // id → index into queue, for in-place replacement

	lastTickMu sync.RWMutex
	lastTick   time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine. It performs no I/O; Start does.
func New(opts Options) *Engine {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Engine{
		orgName:  opts.OrganizationName,
		client:   opts.Client,
		store:    opts.Store,
		db:       opts.DB,
		clk:      clk,
		interval: interval,
		logger:   slog.Default().With("component", "engine"),
		queuedAt: make(map[string]int),
	}
}

// Start resolves the organization, recalls the persisted view, runs the
// startup expiration sweep, and launches the tick loop. A resolution or
// recall failure is fatal: the engine does not start.
func (e *Engine) Start(ctx context.Context) error {
	if e.cancel != nil {
		return nil // already started
	}

	orgID, err := e.client.ResolveOrganizationID(ctx, e.orgName)
	if err != nil {
		return fmt.Errorf("resolve organization %q: %w", e.orgName, err)
	}
	e.orgID = orgID

	// Restart checkpoint: only modifications after this instant are
	// fetched. Everything older is covered by the recalled view.
	e.watermark = clock.Format(e.clk.Now())

	if _, err := e.store.Recall(ctx); err != nil {
		return fmt.Errorf("recall events: %w", err)
	}
	e.sweepExpired()
	if err := e.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit startup sweep: %w", err)
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.loop(ctx)

	e.logger.Info("Engine started",
		"org", e.orgName,
		"org_id", e.orgID,
		"tracked", e.store.Snapshot(),
		"interval", e.interval)
	return nil
}

// Stop cancels any in-flight request, waits for the current tick to
// observe cancellation, flushes staged durable writes, and releases the
// HTTP client and the database handle.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done

	ctx, cancel := context.WithTimeout(context.Background(), stopCommitTimeout)
	defer cancel()
	if err := e.store.Commit(ctx); err != nil {
		e.logger.Error("Final commit failed during stop", "error", err)
	}

	e.client.Close()
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.logger.Error("Error closing database client", "error", err)
		}
	}

	e.cancel = nil
	e.done = nil
	e.logger.Info("Engine stopped")
}

// DrainOutbound atomically removes and returns all queued changes, in
// append order. Safe to call while a tick is running.
func (e *Engine) DrainOutbound() []models.Change {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	out := e.queue
	e.queue = nil
	e.queuedAt = make(map[string]int)
	if len(out) > 0 {
		e.logger.Info("Drained outbound queue",
			"changes", len(out), "tracked", e.store.Snapshot())
	}
	return out
}

// Snapshot returns the number of tracked events, for diagnostics.
func (e *Engine) Snapshot() int {
	return e.store.Snapshot()
}

// QueueDepth returns the number of undrained changes, for diagnostics.
func (e *Engine) QueueDepth() int {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	return len(e.queue)
}

// LastTick returns when the last tick completed, for diagnostics.
// Zero before the first tick.
func (e *Engine) LastTick() time.Time {
	e.lastTickMu.RLock()
	defer e.lastTickMu.RUnlock()
	return e.lastTick
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	// First tick immediately; the cadence starts after it.
	e.runTick(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runTick(ctx)
			// Single-flight: a cadence firing that elapsed while the
			// tick above was running is dropped, not queued.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// enqueue appends a change, replacing any still-queued entry for the
// same event id so the queue holds at most one entry per id.
func (e *Engine) enqueue(ch models.Change) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	if idx, ok := e.queuedAt[ch.Event.ID]; ok {
		e.queue[idx] = ch
		return
	}
	e.queuedAt[ch.Event.ID] = len(e.queue)
	e.queue = append(e.queue, ch)
}

func (e *Engine) markTick() {
	e.lastTickMu.Lock()
	e.lastTick = e.clk.Now()
	e.lastTickMu.Unlock()
}
