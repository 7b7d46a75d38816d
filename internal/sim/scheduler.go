package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jerry-samek/tick-frame-space-sub008/logging/simulation"
)

// ErrAlreadyRunning reports a second Start on the same scheduler. A
// scheduler drives exactly one run; build a fresh one to run again.
var ErrAlreadyRunning = errors.New("sim: scheduler already running")

// FatalError wraps the action failure that halted a run. Once any action of
// a tick fails, that tick is abandoned uncommitted and no further ticks
// execute.
type FatalError struct {
	Tick uint64
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("sim: tick %d halted: %v", e.Tick, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// SchedulerConfig tunes the tick cadence and the worker pool.
type SchedulerConfig struct {
	// TickDelay is the rest interval between the end of one tick's
	// processing and the start of the next. The cadence is fixed delay,
	// not fixed rate: a slow tick postpones the next one instead of
	// overlapping it.
	TickDelay time.Duration
	Workers   int
}

func (c SchedulerConfig) normalized() SchedulerConfig {
	if c.TickDelay <= 0 {
		c.TickDelay = 125 * time.Millisecond
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// TickResult summarises one advanced tick.
type TickResult struct {
	Tick     uint64
	Actions  int
	Duration time.Duration
	Err      error
}

// Hooks let the engine participate in the tick sequence. AfterTick runs on
// the scheduler goroutine once every action of a successful tick has joined;
// the engine commits and flips world state there. It is not called for a
// failed tick, and an error it returns is as fatal as a failed action: the
// tick is abandoned and the run halts.
type Hooks struct {
	AfterTick func(TickResult) error
}

// Scheduler advances the simulation clock. Per tick it gathers actions from
// the registered consumers, fans them out on the worker pool, joins them,
// runs the after-tick hook, and only then re-arms its timer with the
// configured delay.
type Scheduler struct {
	cfg       SchedulerConfig
	deps      Deps
	pool      *Pool
	consumers []Consumer
	hooks     Hooks

	started atomic.Bool
	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
	stop    sync.Once
	tick    atomic.Uint64
	failure atomic.Pointer[FatalError]
}

// NewScheduler builds a scheduler and starts its worker pool.
func NewScheduler(cfg SchedulerConfig, deps Deps, hooks Hooks) *Scheduler {
	cfg = cfg.normalized()
	return &Scheduler{
		cfg:    cfg,
		deps:   deps.normalized(),
		pool:   NewPool(cfg.Workers),
		hooks:  hooks,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a consumer. Registration must finish before Start.
func (s *Scheduler) Register(c Consumer) {
	if s == nil || c == nil {
		return
	}
	s.consumers = append(s.consumers, c)
}

// Pool exposes the shared worker pool so committed phases can fan out on the
// same workers between ticks.
func (s *Scheduler) Pool() *Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Tick returns the number of the most recently started tick.
func (s *Scheduler) Tick() uint64 {
	if s == nil {
		return 0
	}
	return s.tick.Load()
}

// SetBaseTick moves the tick counter so the next tick is base+1. It exists
// for restoring a run from a snapshot and is ignored once any tick has run
// or the loop has started.
func (s *Scheduler) SetBaseTick(base uint64) {
	if s == nil || s.started.Load() || s.tick.Load() != 0 {
		return
	}
	s.tick.Store(base)
}

// Running reports whether the run loop is live.
func (s *Scheduler) Running() bool {
	if s == nil {
		return false
	}
	return s.running.Load()
}

// Done closes when the run loop has exited, whether by Stop or by a fatal
// action error.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the FatalError that halted the run, or nil.
func (s *Scheduler) Err() error {
	if s == nil {
		return nil
	}
	if f := s.failure.Load(); f != nil {
		return f
	}
	return nil
}

// Start launches the run loop. The first tick fires after one full delay.
func (s *Scheduler) Start() error {
	if s == nil {
		return ErrAlreadyRunning
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.running.Store(true)
	go s.run()
	return nil
}

// Stop prevents future ticks. An in-flight tick completes, then the loop
// exits and Done closes. Stop is idempotent and safe from any goroutine.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.stop.Do(func() {
		close(s.stopCh)
	})
}

func (s *Scheduler) run() {
	defer func() {
		s.running.Store(false)
		s.pool.Close()
		close(s.done)
	}()

	timer := time.NewTimer(s.cfg.TickDelay)
	defer timer.Stop()
	var overrunStreak uint64

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
		}
		// A Stop racing the timer should win before new work starts.
		select {
		case <-s.stopCh:
			return
		default:
		}

		result := s.advance()
		if result.Err != nil {
			return
		}

		if result.Duration > s.cfg.TickDelay {
			overrunStreak++
			s.reportOverrun(result, overrunStreak)
		} else {
			overrunStreak = 0
		}

		timer.Reset(s.cfg.TickDelay)
	}
}

// Advance executes exactly one tick synchronously on the calling goroutine.
// It serves tools and tests that step the simulation without the timer loop
// and must not be mixed with a running Start loop.
func (s *Scheduler) Advance() (TickResult, error) {
	if s == nil || s.running.Load() {
		return TickResult{}, ErrAlreadyRunning
	}
	if f := s.failure.Load(); f != nil {
		return TickResult{}, f
	}
	result := s.advance()
	return result, result.Err
}

// advance executes a single tick: gather, fan out, join, hook.
func (s *Scheduler) advance() TickResult {
	tick := s.tick.Add(1)
	start := s.deps.Clock.Now()

	var actions []Action
	for _, c := range s.consumers {
		actions = append(actions, c.ActionsForTick(tick)...)
	}

	result := TickResult{Tick: tick, Actions: len(actions)}
	if err := s.pool.Do(actions); err != nil {
		return s.fail(result, start, err)
	}

	if s.hooks.AfterTick != nil {
		result.Duration = s.deps.Clock.Now().Sub(start)
		if err := s.hooks.AfterTick(result); err != nil {
			return s.fail(result, start, err)
		}
	}
	// The commit hook is part of the tick's work for cadence purposes.
	result.Duration = s.deps.Clock.Now().Sub(start)

	if s.deps.Metrics != nil {
		s.deps.Metrics.Store("sim_tick", tick)
		s.deps.Metrics.Add("sim_actions_total", uint64(result.Actions))
	}
	return result
}

func (s *Scheduler) fail(result TickResult, start time.Time, err error) TickResult {
	fatal := &FatalError{Tick: result.Tick, Err: err}
	s.failure.Store(fatal)
	result.Err = fatal
	result.Duration = s.deps.Clock.Now().Sub(start)
	s.reportHalt(fatal)
	return result
}

func (s *Scheduler) reportOverrun(result TickResult, streak uint64) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Add("sim_tick_overrun_total", 1)
	}
	if s.deps.Logger != nil {
		s.deps.Logger.Printf(
			"[scheduler] tick %d ran %s over a %s delay (streak=%d)",
			result.Tick,
			result.Duration,
			s.cfg.TickDelay,
			streak,
		)
	}
	simulation.TickBudgetOverrun(context.Background(), s.deps.Publisher, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   s.cfg.TickDelay.Milliseconds(),
		Streak:         streak,
	}, nil)
}

func (s *Scheduler) reportHalt(fatal *FatalError) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Add("sim_halt_total", 1)
	}
	if s.deps.Logger != nil {
		s.deps.Logger.Printf("[scheduler] halting: %v", fatal)
	}
	simulation.Halted(context.Background(), s.deps.Publisher, fatal.Tick, simulation.HaltedPayload{
		Reason: fatal.Err.Error(),
	}, nil)
}

var _ Submitter = (*Pool)(nil)
var _ Submitter = Serial{}
