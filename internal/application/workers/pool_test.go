package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/pkg/adapters/metrics/noop"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	pool := NewPool(size, noop.NewCollector(), zap.NewNop(), time.Minute)
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return pool
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool := newTestPool(t, 2)

	const n = 10
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ran int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), Task{
			Label: "test-task",
			Run: func(context.Context) {
				defer wg.Done()
				mu.Lock()
				ran++
				mu.Unlock()
			},
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if ran != n {
		t.Fatalf("expected %d tasks to run, got %d", n, ran)
	}
}

func TestPoolStartTwiceFails(t *testing.T) {
	pool := newTestPool(t, 1)
	if err := pool.Start(); err == nil {
		t.Fatalf("expected a second Start to fail")
	}
}

func TestPoolSubmitAfterShutdownFails(t *testing.T) {
	pool := NewPool(1, noop.NewCollector(), zap.NewNop(), time.Minute)
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pool.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	err := pool.Submit(context.Background(), Task{Label: "late", Run: func(context.Context) {}})
	if err == nil {
		t.Fatalf("expected Submit to fail after shutdown")
	}
}

func TestPoolSubmitHonorsTaskContext(t *testing.T) {
	pool := newTestPool(t, 1)

	// Occupy the lone worker and fill the queue so the next submit blocks.
	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	if err := pool.Submit(context.Background(), Task{
		Label: "blocker",
		Run: func(context.Context) {
			defer wg.Done()
			close(started)
			<-release
		},
	}); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	<-started
	for {
		err := pool.Submit(context.Background(), Task{Label: "filler", Run: func(context.Context) {}})
		if err != nil {
			t.Fatalf("Submit filler: %v", err)
		}
		if len(pool.tasks) == cap(pool.tasks) {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, Task{Label: "late", Run: func(context.Context) {}}); err == nil {
		t.Fatalf("expected Submit to fail once the task context expired")
	}

	close(release)
	wg.Wait()
}

func TestPoolStatusReportsWorkers(t *testing.T) {
	pool := newTestPool(t, 3)

	status := pool.GetStatus()
	if len(status) != 3 {
		t.Fatalf("expected 3 workers, got %d", len(status))
	}
}
