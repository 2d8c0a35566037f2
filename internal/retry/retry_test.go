package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/cloudlab/internal/apierr"
)

// recorder collects requested waits instead of sleeping.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func transportErr(msg string) error {
	return apierr.FromTransport("chat.complete", errors.New(msg))
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	policy := Policy{MaxAttempts: 3, Unit: time.Second, Sleep: rec.sleep}

	calls := 0
	got, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", transportErr("connection refused")
		}
		return "summary", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "summary" {
		t.Errorf("expected result to be returned unchanged, got %q", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), rec.waits)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], rec.waits[i])
		}
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	policy := Policy{MaxAttempts: 3, Unit: time.Second, Sleep: rec.sleep}

	calls := 0
	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, transportErr("i/o timeout")
	})
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected Attempts 3, got %d", exhausted.Attempts)
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") || !strings.Contains(err.Error(), "i/o timeout") {
		t.Errorf("expected last error description in message, got %q", err.Error())
	}
	if !apierr.IsTransient(err) {
		t.Error("expected the last transport error to remain reachable")
	}
	if len(rec.waits) != 2 {
		t.Errorf("expected no wait after the final attempt, got %v", rec.waits)
	}
}

func TestDo_FailsFastOnNonTransportError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "4xx rejection", err: apierr.FromHTTP("chat.complete", 400, []byte(`{"error":{"message":"bad request"}}`))},
		{name: "rate limit is not retried", err: apierr.FromHTTP("chat.complete", 429, nil)},
		{name: "malformed body", err: apierr.Malformed("chat.complete", errors.New("unexpected EOF"))},
		{name: "untagged error", err: errors.New("boom")},
		{name: "cancellation", err: apierr.FromTransport("chat.complete", context.Canceled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			policy := Policy{MaxAttempts: 3, Unit: time.Second, Sleep: rec.sleep}

			calls := 0
			_, err := Do(context.Background(), policy, func(context.Context) (struct{}, error) {
				calls++
				return struct{}{}, tt.err
			})
			if calls != 1 {
				t.Errorf("expected a single attempt, got %d", calls)
			}
			if len(rec.waits) != 0 {
				t.Errorf("expected zero waits, got %v", rec.waits)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected original error, got %v", err)
			}
			if errors.Is(err, ErrExhausted) {
				t.Error("fail-fast error must not report exhaustion")
			}
		})
	}
}

func TestDo_CancelledDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := Policy{MaxAttempts: 3, Unit: time.Hour}
	calls := 0
	_, err := Do(ctx, policy, func(context.Context) (int, error) {
		calls++
		return 0, transportErr("connection reset")
	})
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
	if apierr.ReasonOf(err) != apierr.ReasonCanceled {
		t.Errorf("expected canceled, got %v (%v)", apierr.ReasonOf(err), err)
	}
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	t.Run("default policy is 3 attempts of 1s unit", func(t *testing.T) {
		t.Parallel()
		p := DefaultPolicy()
		if p.MaxAttempts != 3 {
			t.Errorf("expected 3, got %d", p.MaxAttempts)
		}
		if p.Unit != time.Second {
			t.Errorf("expected 1s, got %v", p.Unit)
		}
	})

	t.Run("backoff doubles per attempt", func(t *testing.T) {
		t.Parallel()
		p := Policy{Unit: time.Millisecond}
		for attempt, want := range []time.Duration{1, 2, 4, 8} {
			if got := p.Backoff(attempt); got != want*time.Millisecond {
				t.Errorf("attempt %d: expected %v, got %v", attempt, want*time.Millisecond, got)
			}
		}
	})

	t.Run("large attempts saturate instead of overflowing", func(t *testing.T) {
		t.Parallel()
		p := Policy{Unit: time.Second}
		for _, attempt := range []int{12, 40, 63, 64, 1000} {
			if got := p.Backoff(attempt); got != MaxBackoff {
				t.Errorf("attempt %d: expected %v, got %v", attempt, MaxBackoff, got)
			}
		}
		if got := p.Backoff(-1); got != time.Second {
			t.Errorf("negative attempt: expected 1s, got %v", got)
		}
	})

	t.Run("zero attempts means one call", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
			calls++
			return 0, transportErr("refused")
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
	})
}
