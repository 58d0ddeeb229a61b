package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/boxkeeper/internal/resilience"
)

var errBackend = errors.New("backend down")

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(c *clock) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:        "test",
		MaxFailures: 3,
		Cooldown:    10 * time.Second,
		Probes:      2,
		Now:         c.Now,
	})
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := newBreaker(newClock())
	for i := range 3 {
		if b.State() != resilience.Closed {
			t.Fatalf("call %d: state = %s, want closed", i, b.State())
		}
		if err := b.Do(fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}
	if b.State() != resilience.Open {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("open breaker ran the call")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := newBreaker(newClock())
	_ = b.Do(fail)
	_ = b.Do(fail)
	_ = b.Do(succeed)
	_ = b.Do(fail)
	_ = b.Do(fail)
	if b.State() != resilience.Closed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		probe []func() error
		want  resilience.State
	}{
		{name: "enough probes close", probe: []func() error{succeed, succeed}, want: resilience.Closed},
		{name: "first probe fails", probe: []func() error{fail}, want: resilience.Open},
		{name: "second probe fails", probe: []func() error{succeed, fail}, want: resilience.Open},
		{name: "one probe stays half-open", probe: []func() error{succeed}, want: resilience.HalfOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newClock()
			b := newBreaker(c)
			for range 3 {
				_ = b.Do(fail)
			}
			c.Advance(9 * time.Second)
			if b.State() != resilience.Open {
				t.Fatalf("state before cooldown = %s, want open", b.State())
			}
			c.Advance(time.Second)
			if b.State() != resilience.HalfOpen {
				t.Fatalf("state after cooldown = %s, want half-open", b.State())
			}
			for _, p := range tt.probe {
				_ = b.Do(p)
			}
			if got := b.State(); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()

	c := newClock()
	b := newBreaker(c)
	for range 3 {
		_ = b.Do(fail)
	}
	c.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Do(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started

	if err := b.Do(succeed); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("third concurrent probe err = %v, want ErrOpen", err)
	}
	close(release)
	wg.Wait()
	if b.State() != resilience.Closed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	t.Parallel()

	b := newBreaker(newClock())
	for _, err := range []error{context.Canceled, context.DeadlineExceeded, fmt.Errorf("llm: %w", context.Canceled)} {
		for range 5 {
			_ = b.Do(func() error { return err })
		}
	}
	if b.State() != resilience.Closed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := newBreaker(newClock())
	for range 3 {
		_ = b.Do(fail)
	}
	b.Reset()
	if b.State() != resilience.Closed {
		t.Fatalf("state = %s, want closed", b.State())
	}
	if err := b.Do(succeed); err != nil {
		t.Errorf("Do after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[resilience.State]string{
		resilience.Closed:    "closed",
		resilience.Open:      "open",
		resilience.HalfOpen:  "half-open",
		resilience.State(42): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
