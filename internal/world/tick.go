package world

import (
	"context"
	"fmt"
	"sort"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/resolve"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	simlog "github.com/jerry-samek/tick-frame-space-sub008/logging/simulation"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// CommitStats summarizes what one commit changed.
type CommitStats struct {
	// Entities is the committed population after the tick.
	Entities int
	// Collisions counts cells that had more than one claimant.
	Collisions int
	// Spawned counts queued requests that entered the lattice this tick.
	Spawned int
	// Removed counts entities consumed by merge or disappear outcomes.
	Removed int
}

// ActionsForTick enumerates the tick's work: one proposal action per live
// entity plus one action draining queued spawns into birth proposals.
// Enumeration itself only reads committed state and stages nothing.
func (s *Store) ActionsForTick(tick uint64) []sim.Action {
	states := s.Entities()
	actions := make([]sim.Action, 0, len(states)+1)
	for _, st := range states {
		actions = append(actions, sim.ActionFunc(func() error {
			dest := s.law.ProposeMove(st, s.offsets)
			s.propose(s.boundProposal(st, dest), st)
			return nil
		}))
	}
	actions = append(actions, sim.ActionFunc(func() error {
		s.drainSpawns(tick)
		return nil
	}))
	return actions
}

// boundProposal keeps a law's destination inside the entity's Moore
// neighborhood. Anything farther, and any dimension mismatch, keeps the
// entity in place.
func (s *Store) boundProposal(e sim.EntityState, dest grid.Vector) grid.Vector {
	delta, err := dest.Sub(e.Pos)
	if err != nil {
		return e.Pos
	}
	if delta.MaxComponent().Cmp(scalar.One()) > 0 {
		return e.Pos
	}
	return dest
}

func (s *Store) propose(dest grid.Vector, claimant sim.EntityState) {
	hash := dest.Hash64()
	s.propMu.Lock()
	defer s.propMu.Unlock()
	for _, bucket := range s.proposals[hash] {
		if bucket.dest.Equal(dest) {
			bucket.claimants = append(bucket.claimants, claimant)
			return
		}
	}
	s.proposals[hash] = append(s.proposals[hash], &proposalBucket{
		dest:      dest,
		claimants: []sim.EntityState{claimant},
	})
}

// drainSpawns turns queued requests into birth proposals. Births claim
// their requested cell and contend like any other claimant, so a spawn can
// merge or vanish on its very first tick.
func (s *Store) drainSpawns(tick uint64) {
	requests := s.spawns.Drain()
	if len(requests) == 0 {
		return
	}
	minted := make([]sim.EntityState, 0, len(requests))
	for _, req := range requests {
		minted = append(minted, sim.EntityState{
			ID:        s.mintID(),
			BirthTick: tick,
			Pos:       req.Pos,
			Energy:    req.Energy,
			Momentum:  req.Momentum,
		})
	}
	s.propMu.Lock()
	s.births = append(s.births, minted...)
	s.propMu.Unlock()
	for _, st := range minted {
		s.propose(st.Pos, st)
	}
}

// Commit resolves the tick's proposals into the staging arena. It runs
// between the tick's action barrier and the flip. Entities absent from
// every proposal are excluded from the staged arena; with one proposal
// action per entity that only happens through a collision outcome.
func (s *Store) Commit(tick uint64) (CommitStats, error) {
	s.propMu.Lock()
	proposals := s.proposals
	births := s.births
	s.proposals = make(map[uint64][]*proposalBucket)
	s.births = nil
	s.propMu.Unlock()

	buckets := make([]*proposalBucket, 0, len(proposals))
	for _, list := range proposals {
		buckets = append(buckets, list...)
	}
	// Canonical cell order keeps event and apply order reproducible from
	// run to run; map iteration above is not.
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].dest.Key() < buckets[j].dest.Key()
	})

	outcomes := make([]resolve.Outcome, len(buckets))
	actions := make([]sim.Action, len(buckets))
	for i, bucket := range buckets {
		actions[i] = sim.ActionFunc(func() error {
			out, err := resolve.Resolve(bucket.claimants, s.cfg.Resolver)
			if err != nil {
				return fmt.Errorf("world: cell %s: %w", bucket.dest, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := s.submit.Do(actions); err != nil {
		return CommitStats{}, err
	}

	stats := CommitStats{Spawned: len(births)}
	for _, st := range births {
		s.publishSpawn(tick, st)
	}

	next := s.arenas[1-s.current]
	for i, bucket := range buckets {
		out := outcomes[i]
		if len(bucket.claimants) > 1 {
			stats.Collisions++
			s.publishCollision(tick, bucket, out)
		}
		switch out.Kind {
		case resolve.KindBounce:
			for _, st := range out.Updated {
				next.place(st)
			}
		default:
			// Merge and disappear leave one survivor whose claim on the
			// destination is honored.
			survivor := *out.Survivor
			survivor.Pos = bucket.dest
			next.place(survivor)
			reason := "merged"
			if out.Kind == resolve.KindDisappear {
				reason = "annihilated"
			}
			for _, id := range out.Removed {
				s.publishRemoved(tick, bucket.dest, id, reason)
			}
			stats.Removed += len(out.Removed)
		}
	}
	stats.Entities = len(next.entities)

	if s.metrics != nil {
		s.metrics.Store(entitiesMetricKey, uint64(stats.Entities))
		if stats.Collisions > 0 {
			s.metrics.Add(collisionsMetricKey, uint64(stats.Collisions))
		}
		if stats.Spawned > 0 {
			s.metrics.Add(spawnedMetricKey, uint64(stats.Spawned))
		}
		if stats.Removed > 0 {
			s.metrics.Add(removedMetricKey, uint64(stats.Removed))
		}
	}
	return stats, nil
}

// Flip makes the staging arena the committed one and clears the previous
// arena for reuse. No write from the tick is observable before this point.
func (s *Store) Flip() {
	s.mu.Lock()
	previous := s.arenas[s.current]
	s.current = 1 - s.current
	s.mu.Unlock()
	previous.reset()
}

func (s *Store) publishCollision(tick uint64, bucket *proposalBucket, out resolve.Outcome) {
	ordered := make([]sim.EntityState, len(bucket.claimants))
	copy(ordered, bucket.claimants)
	sort.Slice(ordered, func(i, j int) bool {
		return resolve.HigherPriority(ordered[i], ordered[j])
	})

	before := scalar.Zero()
	for _, c := range ordered {
		before = before.Add(c.Energy)
	}
	after := scalar.Zero()
	if out.Kind == resolve.KindBounce {
		for _, u := range out.Updated {
			after = after.Add(u.Energy)
		}
	} else if out.Survivor != nil {
		after = out.Survivor.Energy
	}

	targets := make([]logging.EntityRef, 0, len(ordered)-1)
	for _, c := range ordered[1:] {
		targets = append(targets, entityRef(c.ID))
	}
	simlog.CollisionResolved(context.Background(), s.pub, tick, bucket.dest.String(), entityRef(ordered[0].ID), targets, simlog.CollisionResolvedPayload{
		Outcome:      string(out.Kind),
		Claimants:    len(bucket.claimants),
		EnergyBefore: before.String(),
		EnergyAfter:  after.String(),
	}, nil)
}

func (s *Store) publishRemoved(tick uint64, pos grid.Vector, id sim.EntityID, reason string) {
	simlog.EntityRemoved(context.Background(), s.pub, tick, pos.String(), entityRef(id), simlog.EntityRemovedPayload{
		Reason: reason,
	}, nil)
}

var _ sim.Consumer = (*Store)(nil)
