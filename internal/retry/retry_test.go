package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, Base: time.Millisecond, Cap: 5 * time.Millisecond}
}

func TestDo_FirstTry(t *testing.T) {
	out := Do(context.Background(), Lookup, func(ctx context.Context, attempt int) error {
		return nil
	})
	if out.Err != nil || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestDo_RecoversAfterFailures(t *testing.T) {
	var seen []int
	out := Do(context.Background(), fast(5), func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("gateway hiccup")
		}
		return nil
	})

	if out.Err != nil {
		t.Fatalf("unexpected error %v", out.Err)
	}
	if out.Attempts != 3 || len(seen) != 3 || seen[2] != 3 {
		t.Errorf("attempts = %d, seen = %v", out.Attempts, seen)
	}
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	out := Do(context.Background(), fast(3), func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("still down")
	})
	if out.Err == nil || calls != 3 || out.Attempts != 3 {
		t.Fatalf("calls = %d, outcome = %+v", calls, out)
	}
}

func TestDo_Stop(t *testing.T) {
	invalidToken := errors.New("401 unauthorized")
	calls := 0
	out := Do(context.Background(), fast(5), func(ctx context.Context, attempt int) error {
		calls++
		return Stop(invalidToken)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !IsStop(out.Err) || !errors.Is(out.Err, invalidToken) {
		t.Errorf("err = %v", out.Err)
	}
}

func TestDo_Retryable(t *testing.T) {
	notFound := errors.New("unknown channel")
	p := fast(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, notFound) }

	calls := 0
	out := Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		calls++
		return notFound
	})
	if calls != 1 || !errors.Is(out.Err, notFound) {
		t.Errorf("calls = %d, err = %v", calls, out.Err)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 10, Base: time.Minute, Cap: time.Minute}

	calls := 0
	out := Do(ctx, p, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(out.Err, context.Canceled) || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, out.Err)
	}
}

func TestDo_ContextAlreadyDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	out := Do(ctx, fast(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if calls != 0 || !errors.Is(out.Err, context.Canceled) {
		t.Errorf("calls = %d, err = %v", calls, out.Err)
	}
}

func TestDo_ZeroAttemptsTriesOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), Policy{}, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("fail")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestValue(t *testing.T) {
	id, out := Value(context.Background(), fast(3), func(ctx context.Context, attempt int) (string, error) {
		if attempt < 2 {
			return "", errors.New("temporary")
		}
		return "1234567890", nil
	})
	if out.Err != nil || id != "1234567890" || out.Attempts != 2 {
		t.Errorf("id = %q, outcome = %+v", id, out)
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_DelayJitter(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: time.Second, Jitter: true}
	for i := 0; i < 50; i++ {
		got := p.Delay(2)
		if got < 100*time.Millisecond || got >= 300*time.Millisecond {
			t.Fatalf("Delay = %v, want within [100ms, 300ms)", got)
		}
	}
}

func TestStop_Nil(t *testing.T) {
	if Stop(nil) != nil {
		t.Error("Stop(nil) should be nil")
	}
}
