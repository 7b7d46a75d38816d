package sim

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolRunsEveryAction(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	var ran atomic.Int64
	actions := make([]Action, 100)
	for i := range actions {
		actions[i] = ActionFunc(func() error {
			ran.Add(1)
			return nil
		})
	}
	if err := pool.Do(actions); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if ran.Load() != 100 {
		t.Fatalf("expected 100 actions to run, got %d", ran.Load())
	}
}

func TestPoolReportsFirstErrorAndStillJoins(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	boom := errors.New("boom")
	var ran atomic.Int64
	actions := []Action{
		ActionFunc(func() error { ran.Add(1); return nil }),
		ActionFunc(func() error { ran.Add(1); return boom }),
		ActionFunc(func() error { ran.Add(1); return nil }),
		ActionFunc(func() error { ran.Add(1); return nil }),
	}
	err := pool.Do(actions)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ran.Load() != 4 {
		t.Fatalf("a failing action must not stop the batch: ran %d", ran.Load())
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()
	if err := pool.Do(nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool := NewPool(2)
	pool.Close()
	pool.Close()
}

func TestNilPoolFallsBackToSerial(t *testing.T) {
	var pool *Pool
	var ran atomic.Int64
	err := pool.Do([]Action{ActionFunc(func() error { ran.Add(1); return nil })})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if ran.Load() != 1 {
		t.Fatalf("expected the action to run")
	}
}

func TestSerialRunsAllAndKeepsFirstError(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	var ran int
	err := Serial{}.Do([]Action{
		ActionFunc(func() error { ran++; return first }),
		ActionFunc(func() error { ran++; return second }),
		nil,
		ActionFunc(func() error { ran++; return nil }),
	})
	if err != first {
		t.Fatalf("expected the first error, got %v", err)
	}
	if ran != 3 {
		t.Fatalf("expected 3 actions to run, got %d", ran)
	}
}
