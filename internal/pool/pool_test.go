package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsTasks(t *testing.T) {
	var mu sync.Mutex
	results := make(map[string]error)
	done := make(chan struct{}, 10)

	p := New(context.Background(), 3, func(r Result) {
		mu.Lock()
		results[r.Task] = r.Err
		mu.Unlock()
		done <- struct{}{}
	})
	defer p.Close()

	errBoom := errors.New("boom")
	tasks := []struct {
		name string
		err  error
	}{
		{"ok-1", nil},
		{"ok-2", nil},
		{"fail", errBoom},
	}
	for _, tt := range tasks {
		err := tt.err
		if err := p.Submit(tt.name, func(ctx context.Context) error { return err }); err != nil {
			t.Fatalf("Submit(%s) error = %v", tt.name, err)
		}
	}

	for range tasks {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, tt := range tasks {
		got, ok := results[tt.name]
		if !ok {
			t.Errorf("no result for %s", tt.name)
			continue
		}
		if !errors.Is(got, tt.err) {
			t.Errorf("result %s error = %v, want %v", tt.name, got, tt.err)
		}
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const size = 2
	var running, peak atomic.Int32
	var wg sync.WaitGroup

	p := New(context.Background(), size, func(Result) { wg.Done() })
	defer p.Close()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		_ = p.Submit("work", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	wg.Wait()

	if got := peak.Load(); got > size {
		t.Errorf("peak concurrency = %d, want <= %d", got, size)
	}
}

func TestPool_PendingAndActive(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup

	p := New(context.Background(), 1, func(Result) { wg.Done() })
	defer p.Close()

	wg.Add(3)
	_ = p.Submit("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	_ = p.Submit("queued-1", func(ctx context.Context) error { return nil })
	_ = p.Submit("queued-2", func(ctx context.Context) error { return nil })

	counters := []struct {
		name string
		got  func() int
		want int
	}{
		{"Active", p.Active, 1},
		{"Pending", p.Pending, 2},
	}
	for _, c := range counters {
		if got := c.got(); got != c.want {
			t.Errorf("%s() = %v, want %v", c.name, got, c.want)
		}
	}

	close(release)
	wg.Wait()
	for _, c := range counters {
		if got := c.got(); got != 0 {
			t.Errorf("%s() after drain = %v, want %v", c.name, got, 0)
		}
	}
}

func TestPool_FIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	p := New(context.Background(), 1, func(Result) { wg.Done() })
	defer p.Close()

	for _, name := range []string{"a", "b", "c", "d"} {
		name := name
		wg.Add(1)
		_ = p.Submit(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}
	wg.Wait()

	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestPool_RecoversPanic(t *testing.T) {
	got := make(chan Result, 1)
	p := New(context.Background(), 1, func(r Result) { got <- r })
	defer p.Close()

	_ = p.Submit("explode", func(ctx context.Context) error {
		panic("kaboom")
	})

	select {
	case r := <-got:
		var pe *PanicError
		if !errors.As(r.Err, &pe) {
			t.Fatalf("result error = %v, want *PanicError", r.Err)
		}
		if pe.Task != "explode" || pe.Value != "kaboom" {
			t.Errorf("PanicError = %+v", pe)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for panic result")
	}

	// The worker survives the panic.
	_ = p.Submit("after", func(ctx context.Context) error { return nil })
	select {
	case r := <-got:
		if r.Task != "after" || r.Err != nil {
			t.Errorf("result = %+v, want clean 'after'", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestPool_CloseCancelsAndDrops(t *testing.T) {
	started := make(chan struct{})
	p := New(context.Background(), 1, nil)

	_ = p.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	_ = p.Submit("queued-1", func(ctx context.Context) error { return nil })
	_ = p.Submit("queued-2", func(ctx context.Context) error { return nil })

	dropped := p.Close()
	if len(dropped) != 2 {
		t.Errorf("Close() dropped = %v, want 2 tasks", dropped)
	}

	if err := p.Submit("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
	if p.Close() != nil {
		t.Error("second Close() returned dropped tasks")
	}
}

func TestPool_SubmitNil(t *testing.T) {
	p := New(context.Background(), 1, nil)
	defer p.Close()

	if err := p.Submit("nil", nil); err == nil {
		t.Error("Submit(nil) error = nil, want error")
	}
}
