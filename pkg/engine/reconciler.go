package engine

import (
	"context"
	"time"

	"github.com/ifi-progsys/sam/pkg/clock"
	"github.com/ifi-progsys/sam/pkg/models"
	"github.com/ifi-progsys/sam/pkg/peoply"
)

// runTick executes one reconciliation cycle:
//
//  1. expiration sweep
//  2. incremental fetch above the watermark
//  3. per-payload classify/apply
//  4. watermark advance (only on fetch success, to the pre-fetch instant)
//  5. durable commit of everything staged this tick
//
// The watermark is captured before the fetch: an event modified during
// the fetch window is re-fetched next tick rather than skipped.
// Reprocessing is safe — its updatedAt will classify as unchanged.
func (e *Engine) runTick(ctx context.Context) {
	defer e.markTick()

	e.sweepExpired()

	preFetch := e.clk.Now()
	raw, err := e.client.FetchEventsSince(ctx, e.orgID, e.watermark)
	if err != nil {
		e.logger.Warn("Fetch failed; keeping watermark", "error", err)
		e.commitTick(ctx)
		return
	}

	for i := range raw {
		e.reconcile(&raw[i])
	}

	e.watermark = clock.Format(preFetch)
	e.commitTick(ctx)
}

// commitTick flushes staged store writes. Errors are logged only: the
// store keeps the batch and the next tick's commit retries it.
func (e *Engine) commitTick(ctx context.Context) {
	if err := e.store.Commit(ctx); err != nil {
		e.logger.Error("Durable commit failed; will retry next tick", "error", err)
	}
}

// reconcile classifies one raw payload and applies the outcome: store
// upsert plus outbound queue entry for NEW and UPDATED, nothing for
// UNCHANGED. Integrity problems skip the payload without aborting the
// tick.
func (e *Engine) reconcile(raw *peoply.RawEvent) {
	if raw.URLID == nil || *raw.URLID == "" {
		e.logger.Warn("Payload integrity violation: missing urlId; skipping")
		return
	}
	id := *raw.URLID

	if raw.UpdatedAt == nil {
		e.logger.Warn("Payload integrity violation: missing updatedAt; skipping", "id", id)
		return
	}
	updatedAt, err := clock.Parse(*raw.UpdatedAt)
	if err != nil {
		e.logger.Warn("Payload integrity violation: malformed updatedAt; skipping",
			"id", id, "error", err)
		return
	}

	kind := models.ClassNew
	if stored, tracked := e.store.LastUpdated(id); tracked {
		kind = e.classify(id, stored, updatedAt)
	}
	if kind == models.ClassUnchanged {
		return
	}

	ev := e.buildEvent(raw, id, updatedAt)
	e.store.Upsert(ev)
	e.enqueue(models.Change{Event: ev, Kind: kind})
	e.logger.Info("Event reconciled", "id", id, "classification", kind)
}

// classify compares a tracked event's stored modification time against
// the upstream payload's. Only a strictly newer upstream timestamp is an
// update: equal means no edit, and older means upstream handed us
// something staler than what we already hold. Never downgrade.
func (e *Engine) classify(id string, stored, upstream time.Time) models.Classification {
	switch clock.Compare(stored, upstream) {
	case clock.Future:
		return models.ClassUpdated
	case clock.Past:
		e.logger.Warn("Integrity warning: stored updatedAt is newer than upstream's",
			"id", id,
			"stored", clock.Format(stored),
			"upstream", clock.Format(upstream))
	}
	return models.ClassUnchanged
}

// buildEvent normalizes a raw payload into a record: absent string
// fields become the literal "null", an absent or malformed startDate
// becomes the sentinel instant, and the link is derived from the id.
func (e *Engine) buildEvent(raw *peoply.RawEvent, id string, updatedAt time.Time) models.Event {
	startAt := clock.Sentinel
	if raw.StartDate != nil {
		parsed, err := clock.Parse(*raw.StartDate)
		if err != nil {
			e.logger.Warn("Malformed startDate; substituting sentinel",
				"id", id, "error", err)
		} else {
			startAt = parsed
		}
	}

	return models.Event{
		ID:          id,
		Title:       stringOrNull(raw.Title),
		Description: stringOrNull(raw.Description),
		StartAt:     startAt,
		UpdatedAt:   updatedAt,
		Place:       stringOrNull(raw.LocationName),
		Link:        e.client.EventLink(id),
	}
}

// sweepExpired removes every tracked event whose start is no longer in
// the future. Removal is local only: no upstream call, no outbound queue
// entry — the announcement message simply stops being maintained.
func (e *Engine) sweepExpired() {
	now := e.clk.Now()

	removed := 0
	for _, ev := range e.store.All() {
		if clock.Compare(now, ev.StartAt) != clock.Future {
			e.store.Remove(ev.ID)
			removed++
		}
	}
	if removed > 0 {
		e.logger.Info("Expired events swept",
			"removed", removed, "tracked", e.store.Snapshot())
	}
}

// stringOrNull applies the upstream defaulting rule for absent string
// fields.
func stringOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}
