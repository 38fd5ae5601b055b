package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSubmitReturnsResult(t *testing.T) {
	pool := newWorkerPool(2)
	defer pool.Close()

	if err := pool.Submit(context.Background(), func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("Submit returned %v, want nil", err)
	}

	wantErr := errors.New("store down")
	if err := pool.Submit(context.Background(), func(ctx context.Context) error {
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("Submit returned %v, want %v", err, wantErr)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 3
	pool := newWorkerPool(size)
	defer pool.Close()

	var running, peak int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < size*3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt64(&running, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				<-release
				atomic.AddInt64(&running, -1)
				return nil
			})
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > size {
		t.Errorf("peak concurrency = %d, want at most %d", got, size)
	}
}

func TestPoolSubmitCancelled(t *testing.T) {
	pool := newWorkerPool(1)
	defer pool.Close()

	// Occupy the single worker.
	block := make(chan struct{})
	go pool.Submit(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Submit(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Submit on cancelled ctx = %v, want context.Canceled", err)
	}

	close(block)
}
