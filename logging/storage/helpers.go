package storage

import (
	"context"

	"github.com/jerry-samek/tick-frame-space-sub008/logging"
)

const (
	// EventSnapshotSaved is emitted when a world snapshot lands in the archive.
	EventSnapshotSaved logging.EventType = "storage.snapshot_saved"
	// EventSnapshotFailed is emitted when capturing or persisting a snapshot fails.
	EventSnapshotFailed logging.EventType = "storage.snapshot_failed"
	// EventArchivePruned is emitted after old snapshots are deleted.
	EventArchivePruned logging.EventType = "storage.archive_pruned"
)

// SnapshotSavedPayload captures the stored snapshot's shape.
type SnapshotSavedPayload struct {
	Entities   int   `json:"entities"`
	Bytes      int   `json:"bytes"`
	Compressed bool  `json:"compressed"`
	ElapsedMs  int64 `json:"elapsedMs"`
}

// SnapshotSaved publishes an info event after a snapshot is archived.
func SnapshotSaved(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapshotSavedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSnapshotSaved,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStorage,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SnapshotFailedPayload captures the failure.
type SnapshotFailedPayload struct {
	Error string `json:"error"`
}

// SnapshotFailed publishes an error event when archiving a snapshot fails.
func SnapshotFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapshotFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSnapshotFailed,
		Tick:     tick,
		Severity: logging.SeverityError,
		Category: logging.CategoryStorage,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ArchivePrunedPayload captures how much history was trimmed.
type ArchivePrunedPayload struct {
	Deleted int64  `json:"deleted"`
	Keep    int64  `json:"keep"`
	Oldest  uint64 `json:"oldest"`
}

// ArchivePruned publishes a debug event after old snapshots are removed.
func ArchivePruned(ctx context.Context, pub logging.Publisher, tick uint64, payload ArchivePrunedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventArchivePruned,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryStorage,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
