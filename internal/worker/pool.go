// Package worker runs background tasks on a fixed set of goroutines with a panic
// boundary around every task.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned by Submit after Shutdown has started.
	ErrClosed = errors.New("worker pool is shutting down")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("worker queue is full")
)

// Task is one unit of background work identified by Key (a job ID).
type Task struct {
	Key string
	Run func(ctx context.Context)
}

// PanicHandler is called from the worker goroutine after a task panicked.
type PanicHandler func(key string, recovered any)

type Pool struct {
	log     logrus.FieldLogger
	workers int
	onPanic PanicHandler

	ch     chan Task
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Task, n)
		}
	}
}

func WithPanicHandler(h PanicHandler) Option {
	return func(p *Pool) {
		p.onPanic = h
	}
}

// NewPool starts the workers immediately.
func NewPool(log logrus.FieldLogger, opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:     log.WithField("component", "worker_pool"),
		workers: 4,
		ch:      make(chan Task, 256),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.log.WithField("worker_id", workerID).Debug("worker_started")

				for t := range p.ch {
					p.execute(workerID, t)
				}

				p.log.WithField("worker_id", workerID).Debug("worker_stopped")
			}(i + 1)
		}
	})
}

func (p *Pool) execute(workerID int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"worker_id": workerID,
				"key":       t.Key,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			}).Error("task_panicked")
			if p.onPanic != nil {
				p.onPanic(t.Key, r)
			}
		}
	}()
	t.Run(p.ctx)
}

// Submit enqueues t without blocking.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.ch <- t:
		return nil
	default:
		p.log.WithField("key", t.Key).Warn("queue_full")
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to drain. When ctx
// expires first, running tasks see their context cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-done:
		p.cancel()
		p.log.Info("queue drained, shutdown complete")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.log.Warn("shutdown interrupted by context")
		return ctx.Err()
	}
}
