// Package worker runs Telegram updates on a fixed number of goroutines.
// Tasks submitted with the same key always land on the same worker and run
// in submission order.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

type Pool struct {
	wg     sync.WaitGroup
	queues []chan Task
	next   uint32
	quit   chan struct{}
	stop   sync.Once
	n      int
	log    *zerolog.Logger
}

func NewPool(workers int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	queues := make([]chan Task, workers)
	for i := range queues {
		queues[i] = make(chan Task, 4)
	}
	return &Pool{queues: queues, quit: make(chan struct{}), n: workers, log: log}
}

func (p *Pool) queueFor(key int64) chan Task {
	return p.queues[uint64(key)%uint64(p.n)]
}

func (p *Pool) anyQueue() chan Task {
	return p.queues[atomic.AddUint32(&p.next, 1)%uint32(p.n)]
}

// Start launches the workers. They exit when ctx is done or Stop is called;
// tasks still queued at that point are dropped.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int, jobs <-chan Task) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-jobs:
					p.run(ctx, id, task)
				}
			}
		}(i+1, p.queues[i])
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Int("worker", id).Interface("panic", rec).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Error().Err(err).Int("worker", id).Msg("task failed")
	}
}

// Stop signals the workers and waits for running tasks to return. Safe to call twice.
func (p *Pool) Stop() {
	p.stop.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit queues task without blocking and fails with ErrQueueFull when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrStopped
	default:
	}
	select {
	case p.anyQueue() <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait queues task, blocking until there is room, ctx is done or the pool stops.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	return p.submitWait(ctx, p.anyQueue(), task)
}

// SubmitKeyed is SubmitWait pinned to the worker owning key.
func (p *Pool) SubmitKeyed(ctx context.Context, key int64, task Task) error {
	return p.submitWait(ctx, p.queueFor(key), task)
}

func (p *Pool) submitWait(ctx context.Context, q chan Task, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case q <- task:
		return nil
	case <-p.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
