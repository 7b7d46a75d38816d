package sim

// Action is one unit of tick work. Actions scheduled for the same tick run
// concurrently, so an Action must confine its writes to structures that
// tolerate concurrent use. An Action must not submit further work to the
// pool it runs on.
type Action interface {
	Run() error
}

// ActionFunc adapts a function into an Action.
type ActionFunc func() error

// Run implements Action.
func (f ActionFunc) Run() error {
	if f == nil {
		return nil
	}
	return f()
}

// Consumer contributes work to each tick. ActionsForTick is called once per
// tick on the scheduler goroutine before any action runs; the enumeration
// itself must be free of side effects.
type Consumer interface {
	ActionsForTick(tick uint64) []Action
}

// Submitter fans actions out to workers and joins them. The scheduler's pool
// implements it; components that parallelize internal phases accept a
// Submitter so tests can substitute a serial one.
type Submitter interface {
	Do(actions []Action) error
}

// Serial runs actions one by one on the calling goroutine. Like the pool it
// runs every action and reports the first error. It is the Submitter used
// when no pool is wired.
type Serial struct{}

// Do implements Submitter.
func (Serial) Do(actions []Action) error {
	var firstErr error
	for _, a := range actions {
		if a == nil {
			continue
		}
		if err := a.Run(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
