package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_BasicExecution(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Shutdown()

	var ran int64
	var wg sync.WaitGroup
	wg.Add(1)
	err := pool.Go(context.Background(), func() {
		defer wg.Done()
		atomic.AddInt64(&ran, 1)
	}, nil)
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	wg.Wait()

	if atomic.LoadInt64(&ran) != 1 {
		t.Error("job did not execute")
	}
	if pool.Size() != 2 {
		t.Errorf("expected size 2, got %d", pool.Size())
	}
}

func TestWorkerPool_ConcurrencyLimit(t *testing.T) {
	poolSize := 3
	pool := NewWorkerPool(poolSize)
	defer pool.Shutdown()

	var maxConcurrent, current int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := pool.Go(context.Background(), func() {
			defer wg.Done()
			c := atomic.AddInt64(&current, 1)
			mu.Lock()
			if c > maxConcurrent {
				maxConcurrent = c
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}, nil)
		if err != nil {
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	wg.Wait()

	if maxConcurrent > int64(poolSize) {
		t.Errorf("max concurrent %d exceeded pool size %d", maxConcurrent, poolSize)
	}
	if maxConcurrent == 0 {
		t.Error("no concurrent execution detected")
	}
}

func TestWorkerPool_PanicRecovery(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Shutdown()

	recovered := make(chan any, 1)
	err := pool.Go(context.Background(), func() {
		panic("test panic")
	}, func(v any) { recovered <- v })
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	select {
	case v := <-recovered:
		if v != "test panic" {
			t.Errorf("unexpected panic value %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}

	// Pool should still work after a panic.
	done := make(chan struct{})
	if err := pool.Go(context.Background(), func() { close(done) }, nil); err != nil {
		t.Fatalf("submit after panic failed: %v", err)
	}
	<-done
}

func TestWorkerPool_ContextCancellation(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	defer close(block)
	_ = pool.Go(context.Background(), func() { <-block }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Go(ctx, func() {}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Go did not return after context cancellation")
	}
}

func TestWorkerPool_GracefulShutdown(t *testing.T) {
	pool := NewWorkerPool(2)

	var completed int64
	for i := 0; i < 5; i++ {
		_ = pool.Go(context.Background(), func() {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&completed, 1)
		}, nil)
	}
	pool.Shutdown()

	if atomic.LoadInt64(&completed) != 5 {
		t.Errorf("expected 5 completed after shutdown, got %d", atomic.LoadInt64(&completed))
	}
	if m := pool.Metrics(); m.Completed != 5 || m.Active != 0 {
		t.Errorf("unexpected metrics %s", m)
	}
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Shutdown()
	pool.Shutdown() // second call is a no-op

	if err := pool.Go(context.Background(), func() {}, nil); err != ErrPoolShutdown {
		t.Errorf("expected ErrPoolShutdown, got %v", err)
	}
}
