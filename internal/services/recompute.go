package services

import (
	"sync"
	"time"
)

// Signal is one recomputation request. Ledger mutations enqueue the
// affected (category, date); goal contributions enqueue the goal id.
type Signal struct {
	CategoryID string
	Date       time.Time
	GoalID     string
}

// Recomputer consumes recomputation signals.
type Recomputer interface {
	Recompute(sig Signal) error
}

// Dispatcher is the synchronous recompute queue. Mutating services
// enqueue signals and drain the queue before returning to the caller,
// so no stale derived state (budget status, goal progress, alert
// latches) is ever observable after a mutation completes. There is no
// background loop; draining happens on the mutating goroutine.
type Dispatcher struct {
	mu        sync.Mutex
	queue     []Signal
	consumers []Recomputer
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a consumer. Consumers are invoked in registration order.
func (d *Dispatcher) Register(c Recomputer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, c)
}

// Enqueue appends a signal without processing it.
func (d *Dispatcher) Enqueue(sig Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, sig)
}

// Drain processes queued signals until the queue is empty, feeding each
// signal to every consumer. Consumers may enqueue follow-up signals;
// those are processed in the same drain. The first consumer error stops
// the drain and is returned.
func (d *Dispatcher) Drain() error {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return nil
		}
		sig := d.queue[0]
		d.queue = d.queue[1:]
		consumers := d.consumers
		d.mu.Unlock()

		for _, c := range consumers {
			if err := c.Recompute(sig); err != nil {
				return err
			}
		}
	}
}
