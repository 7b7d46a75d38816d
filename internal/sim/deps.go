package sim

import (
	"github.com/jerry-samek/tick-frame-space-sub008/internal/telemetry"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
)

// Deps carries shared infrastructure dependencies required by the engine
// components. Every field may be nil; consumers fall back to no-op
// implementations.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

func (d Deps) normalized() Deps {
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	return d
}
