package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewharvest/internal/services"
)

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestDoRetriesRateLimitUntilSuccess(t *testing.T) {
	var waits []time.Duration
	var hooks []int
	p := Policy{
		Interval: 5 * time.Second,
		Sleep:    recordingSleep(&waits),
		OnWait:   func(_ context.Context, attempt int, _ error) { hooks = append(hooks, attempt) },
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 3 {
			return services.Wrap(services.ErrRateLimited, "acquire", "list", "quota", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	if len(waits) != 3 {
		t.Fatalf("waits = %d, want 3", len(waits))
	}
	for _, w := range waits {
		if w != 5*time.Second {
			t.Fatalf("wait = %v, want 5s", w)
		}
	}
	if len(hooks) != 3 || hooks[0] != 1 || hooks[2] != 3 {
		t.Fatalf("OnWait attempts = %v", hooks)
	}
}

func TestDoReturnsOtherErrorsImmediately(t *testing.T) {
	var waits []time.Duration
	p := Policy{Sleep: recordingSleep(&waits)}
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 || len(waits) != 0 {
		t.Fatalf("calls = %d waits = %d, want 1 and 0", calls, len(waits))
	}
}

func TestDoUsesDefaultInterval(t *testing.T) {
	var waits []time.Duration
	p := Policy{Sleep: recordingSleep(&waits)}
	calls := 0
	_ = p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return services.ErrRateLimited
		}
		return nil
	})
	if len(waits) != 1 || waits[0] != DefaultInterval {
		t.Fatalf("waits = %v, want [%v]", waits, DefaultInterval)
	}
}

func TestDoCustomClassifier(t *testing.T) {
	throttled := errors.New("slow down")
	var waits []time.Duration
	p := Policy{
		Classify: func(err error) bool { return errors.Is(err, throttled) },
		Sleep:    recordingSleep(&waits),
	}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return throttled
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestDoStopsWhenContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Interval: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return services.ErrRateLimited
		})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if !errors.Is(err, services.ErrRateLimited) {
			t.Fatalf("err = %v, want rate-limit cause preserved", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestRetryReturnsValue(t *testing.T) {
	var waits []time.Duration
	p := Policy{Sleep: recordingSleep(&waits)}
	calls := 0
	got, err := Retry(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", services.ErrRateLimited
		}
		return "page-2", nil
	})
	if err != nil || got != "page-2" {
		t.Fatalf("Retry = %q, %v", got, err)
	}
}

func TestSleepWithContextZeroDuration(t *testing.T) {
	if err := SleepWithContext(context.Background(), 0); err != nil {
		t.Fatalf("SleepWithContext: %v", err)
	}
}
