package tickframe

import (
	"github.com/jerry-samek/tick-frame-space-sub008/internal/archive"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/resolve"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/snapshot"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/world"
)

type (
	EntityID     = sim.EntityID
	EntityState  = sim.EntityState
	Momentum     = sim.Momentum
	SpawnRequest = sim.SpawnRequest
	Law          = sim.Law
	LawFunc      = sim.LawFunc
	TickResult   = sim.TickResult
	FatalError   = sim.FatalError

	Outcome     = resolve.Outcome
	OutcomeKind = resolve.Kind

	CommitStats = world.CommitStats
	Bounds      = world.Bounds

	Snapshot    = snapshot.Snapshot
	FormatError = snapshot.FormatError
)

const (
	OutcomeMerge     = resolve.KindMerge
	OutcomeBounce    = resolve.KindBounce
	OutcomeDisappear = resolve.KindDisappear
)

var (
	ErrAlreadyRunning  = sim.ErrAlreadyRunning
	ErrSpawnQueueFull  = world.ErrSpawnQueueFull
	ErrNegativeEnergy  = world.ErrNegativeEnergy
	ErrNegativeCost    = world.ErrNegativeCost
	ErrSnapshotFormat  = snapshot.ErrFormat
	ErrNoArchivedState = archive.ErrNotFound
)
