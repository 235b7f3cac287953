package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MockRedis is an in-memory stand-in for the Redis tier
type MockRedis struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func NewMockRedis() *MockRedis {
	return &MockRedis{data: make(map[string]string)}
}

func (m *MockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *MockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.sets++
	return redis.NewStatusResult("OK", nil)
}

func (m *MockRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

type ranking struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func counter(calls *atomic.Int64) func(context.Context, int) ([]ranking, error) {
	return func(ctx context.Context, days int) ([]ranking, error) {
		calls.Add(1)
		return []ranking{{Name: "smg", Value: float64(days)}}, nil
	}
}

func daysKey(days int) string { return fmt.Sprint(days) }

func TestWrapMemoizes(t *testing.T) {
	tests := []struct {
		name      string
		cache     *Cache
		args      []int
		wantCalls int64
	}{
		{"nil cache calls through", nil, []int{1, 1, 1}, 3},
		{"disabled cache calls through", New(Options{Enabled: false}), []int{1, 1}, 2},
		{"same key computed once", New(Options{Enabled: true}), []int{7, 7, 7}, 1},
		{"keys are separate", New(Options{Enabled: true}), []int{0, 7, 0, 7}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			fn := Wrap(tt.cache, "weapons", time.Minute, daysKey, counter(&calls))
			for _, days := range tt.args {
				got, err := fn(context.Background(), days)
				if err != nil {
					t.Fatal(err)
				}
				if got[0].Value != float64(days) {
					t.Errorf("fn(%d) = %+v", days, got)
				}
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestWrapExpiresAndSweeps(t *testing.T) {
	c := New(Options{Enabled: true, Logger: zap.NewNop()})
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	var calls atomic.Int64
	fn := Wrap(c, "maps", 3*time.Minute, daysKey, counter(&calls))
	ctx := context.Background()

	fn(ctx, 0)
	now = now.Add(2 * time.Minute)
	fn(ctx, 0)
	if calls.Load() != 1 {
		t.Fatalf("calls before expiry = %d, want 1", calls.Load())
	}

	now = now.Add(time.Minute)
	fn(ctx, 1)
	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	fn(ctx, 0)
	if calls.Load() != 3 {
		t.Errorf("calls after expiry = %d, want 3", calls.Load())
	}
}

func TestWrapDoesNotCacheErrors(t *testing.T) {
	c := New(Options{Enabled: true})
	errDB := errors.New("database is locked")
	var calls atomic.Int64
	fn := Wrap(c, "players", time.Minute, daysKey, func(ctx context.Context, days int) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errDB
		}
		return 42, nil
	})

	if _, err := fn(context.Background(), 0); !errors.Is(err, errDB) {
		t.Fatalf("first call error = %v, want errDB", err)
	}
	got, err := fn(context.Background(), 0)
	if err != nil || got != 42 {
		t.Errorf("second call = %d, %v; want 42", got, err)
	}
}

func TestWrapSharesThroughRedis(t *testing.T) {
	rdb := NewMockRedis()
	first := New(Options{Enabled: true, Redis: rdb, Prefix: "test:"})
	second := New(Options{Enabled: true, Redis: rdb, Prefix: "test:"})

	var calls atomic.Int64
	ctx := context.Background()
	if _, err := Wrap(first, "weapons", time.Minute, daysKey, counter(&calls))(ctx, 30); err != nil {
		t.Fatal(err)
	}
	if _, ok := rdb.data["test:weapons:30"]; !ok {
		t.Fatalf("redis keys = %v, want test:weapons:30", rdb.data)
	}

	got, err := Wrap(second, "weapons", time.Minute, daysKey, counter(&calls))(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if len(got) != 1 || got[0].Name != "smg" || got[0].Value != 30 {
		t.Errorf("decoded value = %+v", got)
	}
}

func TestWrapCollapsesConcurrentMisses(t *testing.T) {
	c := New(Options{Enabled: true})
	release := make(chan struct{})
	var calls atomic.Int64
	fn := Wrap(c, "slow", time.Minute, daysKey, func(ctx context.Context, days int) (int, error) {
		calls.Add(1)
		<-release
		return days, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(context.Background(), 5)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestWrapSurvivesFirstCallerCancel(t *testing.T) {
	c := New(Options{Enabled: true})
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	fn := Wrap(c, "slow", time.Minute, daysKey, func(ctx context.Context, days int) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return days * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := fn(firstCtx, 3)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := fn(context.Background(), 3)
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(release)
	got := <-second
	if got.err != nil || got.v != 6 {
		t.Fatalf("live caller = %d, %v; want 6, nil", got.v, got.err)
	}

	if v, err := fn(context.Background(), 3); err != nil || v != 6 {
		t.Errorf("cached call = %d, %v; want 6, nil", v, err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestJanitorLifecycle(t *testing.T) {
	c := New(Options{Enabled: true, CleanInterval: 10 * time.Millisecond})
	if err := c.StartJanitor(); err != nil {
		t.Fatalf("StartJanitor() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	var disabled *Cache
	if err := disabled.StartJanitor(); err != nil {
		t.Errorf("nil StartJanitor() error = %v", err)
	}
	if err := disabled.Stop(); err != nil {
		t.Errorf("nil Stop() error = %v", err)
	}
}
