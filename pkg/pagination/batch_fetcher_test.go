package pagination

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.MaxConcurrency)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.MaxConcurrency <= 0 {
		t.Errorf("MaxConcurrency = %d, want > 0", cfg.MaxConcurrency)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, want > 0", cfg.Timeout)
	}
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	inputs := []int{5, 4, 3, 2, 1}

	got, err := FetchAll(context.Background(), Config{MaxConcurrency: 3}, inputs,
		func(ctx context.Context, n int) (int, error) {
			// Finish in reverse order of submission
			time.Sleep(time.Duration(n) * time.Millisecond)
			return n * 10, nil
		})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	want := []int{50, 40, 30, 20, 10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FetchAll() = %v, want %v", got, want)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	got, err := FetchAll(context.Background(), DefaultConfig(), []string{},
		func(ctx context.Context, s string) (string, error) {
			t.Error("fn should not be called for empty input")
			return s, nil
		})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(FetchAll()) = %d, want 0", len(got))
	}
}

func TestFetchAll_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	inputs := make([]int, 20)

	_, err := FetchAll(context.Background(), Config{MaxConcurrency: 4}, inputs,
		func(ctx context.Context, _ int) (struct{}, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return struct{}{}, nil
		})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if got := atomic.LoadInt32(&peak); got > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", got)
	}
}

func TestFetchAll_FailsWholeBatch(t *testing.T) {
	errBoom := errors.New("boom")
	var calls int32

	got, err := FetchAll(context.Background(), Config{MaxConcurrency: 1}, []int{1, 2, 3, 4},
		func(ctx context.Context, n int) (int, error) {
			atomic.AddInt32(&calls, 1)
			if n == 2 {
				return 0, errBoom
			}
			return n, nil
		})

	if !errors.Is(err, errBoom) {
		t.Fatalf("FetchAll() error = %v, want %v", err, errBoom)
	}
	if got != nil {
		t.Errorf("FetchAll() results = %v, want nil on failure", got)
	}
	if c := atomic.LoadInt32(&calls); c > 2 {
		t.Errorf("fn called %d times, want remaining work skipped after failure", c)
	}
}

func TestFetchAll_PerItemTimeout(t *testing.T) {
	_, err := FetchAll(context.Background(), Config{MaxConcurrency: 2, Timeout: 10 * time.Millisecond}, []int{1},
		func(ctx context.Context, _ int) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchAll() error = %v, want deadline exceeded", err)
	}
}
