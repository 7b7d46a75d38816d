package simulation

import (
	"context"

	"github.com/jerry-samek/tick-frame-space-sub008/logging"
)

const (
	// EventTickCompleted is emitted after every advanced tick.
	EventTickCompleted logging.EventType = "simulation.tick_completed"
	// EventTickBudgetOverrun is emitted when tick processing runs longer than the configured tick delay.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCollisionResolved is emitted for every multi-claimant cell the resolver settles.
	EventCollisionResolved logging.EventType = "simulation.collision_resolved"
	// EventEntitySpawned is emitted when a new entity enters the lattice.
	EventEntitySpawned logging.EventType = "simulation.entity_spawned"
	// EventEntityRemoved is emitted when an entity leaves the lattice.
	EventEntityRemoved logging.EventType = "simulation.entity_removed"
	// EventHalted is emitted when the engine stops because an action failed.
	EventHalted logging.EventType = "simulation.halted"
)

// TickCompletedPayload captures per-tick counters.
type TickCompletedPayload struct {
	DurationMicros int64 `json:"durationMicros"`
	Entities       int   `json:"entities"`
	Collisions     int   `json:"collisions"`
	Spawned        int   `json:"spawned"`
	Removed        int   `json:"removed"`
}

// TickCompleted publishes a debug event summarising one advanced tick.
func TickCompleted(ctx context.Context, pub logging.Publisher, tick uint64, payload TickCompletedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickCompleted,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64  `json:"durationMillis"`
	BudgetMillis   int64  `json:"budgetMillis"`
	Streak         uint64 `json:"streak"`
}

// TickBudgetOverrun publishes a warning when tick processing exceeds the tick delay.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CollisionResolvedPayload captures the outcome of one contested cell.
type CollisionResolvedPayload struct {
	Outcome      string `json:"outcome"`
	Claimants    int    `json:"claimants"`
	EnergyBefore string `json:"energyBefore"`
	EnergyAfter  string `json:"energyAfter"`
}

// CollisionResolved publishes a debug event for one settled cell.
func CollisionResolved(ctx context.Context, pub logging.Publisher, tick uint64, cell string, actor logging.EntityRef, targets []logging.EntityRef, payload CollisionResolvedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCollisionResolved,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Cell:     cell,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EntitySpawnedPayload captures the initial state of a new entity.
type EntitySpawnedPayload struct {
	Energy     string `json:"energy"`
	Generation string `json:"generation"`
}

// EntitySpawned publishes an info event for a new entity.
func EntitySpawned(ctx context.Context, pub logging.Publisher, tick uint64, cell string, actor logging.EntityRef, payload EntitySpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEntitySpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Cell:     cell,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EntityRemovedPayload captures why an entity left the lattice.
type EntityRemovedPayload struct {
	Reason string `json:"reason"`
}

// EntityRemoved publishes a debug event for a removed entity.
func EntityRemoved(ctx context.Context, pub logging.Publisher, tick uint64, cell string, actor logging.EntityRef, payload EntityRemovedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEntityRemoved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Cell:     cell,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// HaltedPayload captures the failure that stopped the engine.
type HaltedPayload struct {
	Reason string `json:"reason"`
}

// Halted publishes an error event when the engine stops on a failed action.
func Halted(ctx context.Context, pub logging.Publisher, tick uint64, payload HaltedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventHalted,
		Tick:     tick,
		Severity: logging.SeverityError,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
