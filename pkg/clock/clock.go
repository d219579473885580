// Package clock provides the engine's time source and the temporal
// comparisons the reconciler is built on.
//
// All instants handled by the engine are explicit UTC. The wire form is
// ISO-8601 with millisecond precision and a literal "Z" suffix — the exact
// shape the peoply.app API expects in the afterDate query parameter.
package clock

import (
	"fmt"
	"time"
)

// Layout is the canonical wire format: ISO-8601 UTC with milliseconds.
const Layout = "2006-01-02T15:04:05.000Z"

// Sentinel is the instant substituted for timestamps absent from an
// upstream payload. It is Go's zero time: 0001-01-01T00:00:00Z.
var Sentinel = time.Time{}.UTC()

// Comparison classifies the relation of one instant to another.
type Comparison int

const (
	// Future means b lies after a.
	Future Comparison = iota
	// Past means b lies before a.
	Past
	// Equal means a and b name the same instant.
	Equal
)

func (c Comparison) String() string {
	switch c {
	case Future:
		return "future"
	case Past:
		return "past"
	case Equal:
		return "equal"
	default:
		return fmt.Sprintf("comparison(%d)", int(c))
	}
}

// Compare reports the relation of b to a.
func Compare(a, b time.Time) Comparison {
	switch {
	case a.Before(b):
		return Future
	case a.After(b):
		return Past
	default:
		return Equal
	}
}

// Format renders t in the canonical wire format, normalizing to UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads an ISO-8601 instant. Timestamps without an explicit zone
// are rejected — RFC 3339 requires one, and the engine never produces or
// accepts naive timestamps.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Clock is the engine's time source. The process clock is used in
// production; tests substitute a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by the process wall clock, truncated to
// millisecond precision so that Format/Parse round-trips are exact.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
