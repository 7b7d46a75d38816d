package lifecycle

import (
	"context"

	"github.com/jerry-samek/tick-frame-space-sub008/logging"
)

const (
	// EventEngineStarted is emitted when the engine begins advancing ticks.
	EventEngineStarted logging.EventType = "lifecycle.engine_started"
	// EventEngineStopped is emitted when the engine stops advancing ticks.
	EventEngineStopped logging.EventType = "lifecycle.engine_stopped"
	// EventWorldRestored is emitted when a saved world replaces the live one.
	EventWorldRestored logging.EventType = "lifecycle.world_restored"
)

// EngineStartedPayload captures the configuration the engine started with.
type EngineStartedPayload struct {
	Dimension       int   `json:"dimension"`
	Entities        int   `json:"entities"`
	TickDelayMillis int64 `json:"tickDelayMillis"`
	Workers         int   `json:"workers"`
}

// EngineStarted publishes an engine start event.
func EngineStarted(ctx context.Context, pub logging.Publisher, tick uint64, payload EngineStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEngineStarted,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EngineStoppedPayload captures why the engine stopped.
type EngineStoppedPayload struct {
	Reason string `json:"reason"`
}

// EngineStopped publishes an engine stop event.
func EngineStopped(ctx context.Context, pub logging.Publisher, tick uint64, payload EngineStoppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEngineStopped,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// WorldRestoredPayload captures the shape of a restored world.
type WorldRestoredPayload struct {
	Entities  int    `json:"entities"`
	Dimension int    `json:"dimension"`
	Source    string `json:"source"`
}

// WorldRestored publishes an event when a snapshot replaces the live world.
func WorldRestored(ctx context.Context, pub logging.Publisher, tick uint64, payload WorldRestoredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventWorldRestored,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
