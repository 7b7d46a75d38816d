package network

import (
	"context"

	"github.com/jerry-samek/tick-frame-space-sub008/logging"
)

const (
	// EventObserverJoined is emitted when a feed subscriber connects.
	EventObserverJoined logging.EventType = "network.observer_joined"
	// EventObserverLeft is emitted when a feed subscriber disconnects.
	EventObserverLeft logging.EventType = "network.observer_left"
	// EventBroadcastLagged is emitted when a subscriber cannot keep up with the feed.
	EventBroadcastLagged logging.EventType = "network.broadcast_lagged"
)

// ObserverPayload captures the remote end of a feed connection.
type ObserverPayload struct {
	RemoteAddr  string `json:"remoteAddr"`
	Subscribers int    `json:"subscribers"`
}

// ObserverJoined publishes a debug event when a subscriber connects.
func ObserverJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ObserverPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventObserverJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ObserverLeft publishes a debug event when a subscriber disconnects.
func ObserverLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ObserverPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventObserverLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// BroadcastLaggedPayload captures a slow subscriber being dropped.
type BroadcastLaggedPayload struct {
	RemoteAddr string `json:"remoteAddr"`
	Reason     string `json:"reason"`
}

// BroadcastLagged publishes a warning when a subscriber is dropped for lagging.
func BroadcastLagged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BroadcastLaggedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventBroadcastLagged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
