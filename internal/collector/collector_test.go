package collector

import (
	"errors"
	"testing"
)

var errStopped = errors.New("pump stopped")

func TestCollectorDeferAndDrain(t *testing.T) {
	c := New()
	ran := 0
	c.Defer(func() { ran++ })
	c.Defer(func() { ran++ })

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	n := c.Drain()
	if n != 2 {
		t.Fatalf("Drain() = %d, want 2", n)
	}
	if ran != 2 {
		t.Fatalf("ran = %d, want 2", ran)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() after Drain = %d, want 0", c.Len())
	}
}

func TestCollectorDrainEmptyIsNoop(t *testing.T) {
	c := New()
	if n := c.Drain(); n != 0 {
		t.Fatalf("Drain() on empty collector = %d, want 0", n)
	}
}

type fakeRunner struct {
	tasks []func()
	err   error
}

func (r *fakeRunner) Run(task func()) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *fakeRunner) runAll() {
	tasks := r.tasks
	r.tasks = nil
	for _, t := range tasks {
		t()
	}
}

func TestCollectorDeferPostsDrainToRunner(t *testing.T) {
	c := New()
	runner := &fakeRunner{}
	c.SetRunner(runner)

	ran := 0
	c.Defer(func() { ran++ })
	if ran != 0 {
		t.Fatalf("ran = %d before runner executes its posted task, want 0", ran)
	}
	if len(runner.tasks) != 1 {
		t.Fatalf("runner got %d posted tasks, want 1", len(runner.tasks))
	}

	runner.runAll()
	if ran != 1 {
		t.Fatalf("ran = %d after runner drains, want 1", ran)
	}
}

func TestCollectorDeferDrainsDirectlyWhenRunnerRejects(t *testing.T) {
	c := New()
	c.SetRunner(&fakeRunner{err: errStopped})

	ran := 0
	c.Defer(func() { ran++ })
	if ran != 1 {
		t.Fatalf("ran = %d, want 1 (direct drain when the runner can't accept work)", ran)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestCollectorDrainOnlyRunsQueuedAtCallTime(t *testing.T) {
	c := New()
	var order []int
	c.Defer(func() {
		order = append(order, 1)
		// Deferring more work during Drain must not run within this
		// Drain call; it's picked up by the next one.
		c.Defer(func() { order = append(order, 2) })
	})
	c.Drain()
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("order after first Drain = %v, want [1]", order)
	}
	c.Drain()
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("order after second Drain = %v, want [1 2]", order)
	}
}
