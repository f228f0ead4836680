package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/ports"
)

// Task is one unit of dispatched work, typically a single agent run inside
// a stage fan-out.
type Task struct {
	Label string
	Run   func(ctx context.Context)
}

// Pool manages a fixed set of dispatch workers. The engine uses it to bound
// the analyst fan-out: independent agent runs within a stage execute
// concurrently, capped at the pool size.
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	tasks   chan Task
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// worker represents a single dispatch goroutine.
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new dispatch pool.
func NewPool(size int, metrics ports.MetricsCollector, logger *zap.Logger, healthCheckInterval time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		tasks:   make(chan Task, size*2),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the dispatch workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("pool already started")
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting dispatch pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("dispatch-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	return nil
}

// Submit queues a task for execution. It blocks while the queue is full and
// fails once the pool is shutting down or taskCtx is done.
func (p *Pool) Submit(taskCtx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("dispatch pool is shut down")
	case <-taskCtx.Done():
		return taskCtx.Err()
	}
}

// Shutdown gracefully shuts down the pool, letting in-flight tasks drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("shutting down dispatch pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("dispatch pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers.
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = WorkerStatusStopped
			w.mu.Unlock()
			return

		case task := <-w.pool.tasks:
			w.mu.Lock()
			w.status = WorkerStatusBusy
			w.lastJob = time.Now()
			w.mu.Unlock()

			w.pool.logger.Debug("dispatching task",
				zap.String("worker_id", w.id),
				zap.String("task", task.Label))

			task.Run(ctx)

			w.mu.Lock()
			w.status = WorkerStatusIdle
			w.mu.Unlock()
		}
	}
}
