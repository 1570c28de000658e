// Package queue provides an in-process work pool with the contract the
// distributed engine exposes to the producer stage: an append-only
// enqueue sink, exactly one callback invocation per dequeued item, and
// termination once no item is queued or in flight. Items are opaque
// encoded bytes until dispatch; a worker never shares a decoded item
// with another.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/swarmcp/swarmcp/internal/op"
)

// Enqueuer is the sink side of the queue handed to callbacks.
type Enqueuer interface {
	Enqueue(item []byte) error
}

// Callback handles one decoded operation. It may enqueue any number of
// derived items. Returning an error aborts the run; queued items are not
// guaranteed to be drained after an abort.
type Callback func(o op.Operation, q Enqueuer) error

// ErrStopped is returned by Enqueue after the engine has shut down.
var ErrStopped = errors.New("queue: engine is stopped")

// Engine is a dynamically balanced work pool. Workers pull items off a
// shared LIFO, so deep traversals stay memory-bounded and idle workers
// pick up whatever their siblings produce.
type Engine struct {
	workers int
	cb      Callback
	runID   string

	mu      sync.Mutex
	cond    *sync.Cond
	items   [][]byte
	pending int // queued + in-flight items
	done    bool
	runErr  error
}

// New creates an engine with the given worker count. A non-positive
// count picks one bounded by CPU count.
func New(workers int, cb Callback) *Engine {
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 8)
	}
	e := &Engine{
		workers: workers,
		cb:      cb,
		runID:   uuid.NewString(),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Enqueue adds one encoded item to the pool. Safe for concurrent use,
// including from within callbacks.
func (e *Engine) Enqueue(item []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return ErrStopped
	}
	e.items = append(e.items, item)
	e.pending++
	e.cond.Signal()
	return nil
}

// Run processes items until the pool drains, the context is cancelled,
// or a callback fails. It returns the first error. Seed items must be
// enqueued before Run is called.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == 0 {
		// Nothing was seeded; terminate immediately.
		e.done = true
	}
	seeded := e.pending
	e.mu.Unlock()

	slog.Debug("queue engine starting", "run_id", e.runID, "workers", e.workers, "seeded", seeded)

	stop := context.AfterFunc(ctx, func() {
		e.abort(ctx.Err())
	})
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.worker(id)
		}(i)
	}
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	slog.Debug("queue engine stopped", "run_id", e.runID, "error", e.runErr)
	return e.runErr
}

func (e *Engine) worker(id int) {
	for {
		e.mu.Lock()
		for len(e.items) == 0 && !e.done {
			e.cond.Wait()
		}
		if e.done {
			e.mu.Unlock()
			return
		}
		item := e.items[len(e.items)-1]
		e.items = e.items[:len(e.items)-1]
		e.mu.Unlock()

		err := e.dispatch(item)

		e.mu.Lock()
		e.pending--
		switch {
		case err != nil:
			if e.runErr == nil {
				e.runErr = err
			}
			e.done = true
			e.cond.Broadcast()
		case e.pending == 0:
			e.done = true
			e.cond.Broadcast()
		}
		e.mu.Unlock()
		if err != nil {
			slog.Error("worker aborting run", "run_id", e.runID, "worker", id, "error", err)
			return
		}
	}
}

// dispatch decodes one item and invokes the callback. A malformed item
// is a defect: it aborts the run and is never retried.
func (e *Engine) dispatch(item []byte) error {
	o, err := op.Decode(item)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	return e.cb(o, e)
}

// abort stops the engine, recording err if it is the first failure.
func (e *Engine) abort(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	if e.runErr == nil {
		e.runErr = err
	}
	e.done = true
	e.cond.Broadcast()
}
