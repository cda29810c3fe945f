// Package dispatch runs fire-and-forget side effects (notifications, sales
// records, events) on a bounded queue drained by a fixed worker pool.
// Failures are logged and never reach the caller that queued the task.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Dispatcher struct {
	queue   chan Task
	timeout time.Duration
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts workers goroutines reading from a queue of the given size.
// Each task gets its own context bounded by timeout.
func New(workers, size int, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{queue: make(chan Task, size), timeout: timeout, log: log}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			for t := range d.queue {
				d.run(id, t)
			}
		}(i)
	}
	return d
}

// Dispatch queues fn without blocking. It returns false when the queue is
// full or the dispatcher is closed; the task is then dropped.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.WithField("task", name).Warn("dispatcher closed, task dropped")
		return false
	}
	select {
	case d.queue <- Task{Name: name, Run: fn}:
		return true
	default:
		d.log.WithField("task", name).Error("dispatch queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(worker int, t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, t)
	entry := d.log.WithFields(logrus.Fields{"task": t.Name, "worker": worker, "latency_ms": time.Since(start).Milliseconds()})
	if err != nil {
		entry.WithError(err).Error("side effect failed")
		return
	}
	entry.Debug("side effect done")
}

func safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}
