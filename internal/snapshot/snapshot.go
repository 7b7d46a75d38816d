// Package snapshot converts committed world state to and from a compact
// binary stream. The format is versioned, optionally gzip-compressed, and
// exact: scalars of any magnitude round-trip without loss.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/world"
)

// ErrFormat matches any FormatError via errors.Is, for callers that only
// care that a stream was unreadable, not why.
var ErrFormat = errors.New("snapshot: malformed stream")

// Snapshot is one tick's full population. Entity IDs are not part of the
// wire format; Decode mints fresh ascending IDs, so identity is stable
// within a process but not across a restore.
type Snapshot struct {
	Tick     uint64
	Dim      int
	Entities []sim.EntityState
}

// Capture copies the committed state of the store at the given tick.
// Entities appear in ascending ID order, which fixes the record order on
// the wire.
func Capture(store *world.Store, tick uint64) Snapshot {
	return Snapshot{
		Tick:     tick,
		Dim:      store.Dim(),
		Entities: store.Entities(),
	}
}

// FormatError reports a malformed or mismatched snapshot stream.
type FormatError struct {
	Detail   string
	Expected string
	Actual   string
	Err      error
}

func (e *FormatError) Error() string {
	switch {
	case e.Expected != "" || e.Actual != "":
		return fmt.Sprintf("snapshot: %s: expected %s, got %s", e.Detail, e.Expected, e.Actual)
	case e.Err != nil:
		return fmt.Sprintf("snapshot: %s: %v", e.Detail, e.Err)
	default:
		return fmt.Sprintf("snapshot: %s", e.Detail)
	}
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
