// Package models defines the event record shared by the upstream client,
// the store, the engine, and the Discord gateway.
package models

import "time"

// Event is the canonical representation of one upstream event, both
// in memory and in the durable events table.
type Event struct {
	// ID is the upstream urlId — the stable identity of the event.
	ID          string
	Title       string
	Description string
	// StartAt is when the event begins. Events are dropped from tracking
	// once StartAt is no longer in the future.
	StartAt time.Time
	// UpdatedAt is the upstream modification timestamp used to detect
	// metadata edits.
	UpdatedAt time.Time
	Place     string
	// Link is the public event page, derived from ID.
	Link string
}

// Classification is the reconciler's verdict for one upstream payload.
type Classification int

const (
	// ClassNew marks an event seen for the first time.
	ClassNew Classification = iota
	// ClassUpdated marks a tracked event whose upstream updatedAt advanced.
	ClassUpdated
	// ClassUnchanged marks a payload that produced no state change.
	// Unchanged events never reach the outbound queue.
	ClassUnchanged
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUpdated:
		return "updated"
	case ClassUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Change is one entry of the outbound queue: an event together with
// how the reconciler classified it.
type Change struct {
	Event Event
	Kind  Classification
}
