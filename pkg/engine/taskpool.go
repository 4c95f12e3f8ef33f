// Package engine hosts the per-deployment moderation core: the task pool,
// the retry wrapper, the prompt validator, and the evaluation pipeline that
// turns incoming messages into persisted evaluations and actions.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrPoolClosed is returned by Submit after Stop has been called.
var ErrPoolClosed = errors.New("task pool is closed")

// Task is one unit of work. The context is cancelled when the pool stops.
type Task func(ctx context.Context)

// TaskPool is a bounded cooperative executor. With a finite size N at most
// N tasks run concurrently and further submissions block until a slot
// frees; with size <= 0 submissions always schedule immediately. Slot
// indices are recycled through an internal queue.
type TaskPool struct {
	size  int
	slots chan int

	mu      sync.Mutex
	closing bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewTaskPool creates a pool. size <= 0 means unbounded.
func NewTaskPool(size int) *TaskPool {
	return &TaskPool{size: size, done: make(chan struct{})}
}

// Size returns the configured concurrency cap (0 for unbounded).
func (p *TaskPool) Size() int {
	if p.size < 0 {
		return 0
	}
	return p.size
}

// Start makes the pool accept submissions. Safe to call once per pool.
func (p *TaskPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	if p.size > 0 {
		p.slots = make(chan int, p.size)
		for i := 0; i < p.size; i++ {
			p.slots <- i
		}
	}
}

// Submit schedules a task, blocking until a slot is free when the pool is
// bounded. Returns ErrPoolClosed once Stop has begun. Submit and Stop are
// serialized by the pool mutex; blocking on a slot holds the mutex, which
// is safe because task completion returns slots without taking it.
func (p *TaskPool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.closing {
		return ErrPoolClosed
	}

	var slot int
	if p.size > 0 {
		select {
		case slot = <-p.slots:
		case <-p.ctx.Done():
			return ErrPoolClosed
		}
	} else {
		slot = -1
	}

	p.wg.Add(1)
	go p.run(task, slot)
	return nil
}

func (p *TaskPool) run(task Task, slot int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if slot >= 0 {
			p.slots <- slot
		}
		p.wg.Done()
	}()
	task(p.ctx)
}

// Stop transitions the pool to closing: new submissions are rejected,
// in-flight tasks are cancelled and awaited with errors swallowed. Safe to
// call more than once.
func (p *TaskPool) Stop() {
	p.mu.Lock()
	if !p.started || p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	close(p.done)
}

// Join blocks until the pool has stopped and all tasks have finished.
func (p *TaskPool) Join() {
	<-p.done
}
