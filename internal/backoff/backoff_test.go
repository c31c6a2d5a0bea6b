package backoff

import (
	"context"
	"testing"
	"time"
)

func TestExponential(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -1, want: 100 * time.Millisecond},
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 200 * time.Millisecond},
		{attempt: 3, want: 800 * time.Millisecond},
		{attempt: 10, want: time.Second},
	}

	for _, tc := range cases {
		got := Exponential(tc.attempt, 100*time.Millisecond, time.Second)
		if got != tc.want {
			t.Fatalf("attempt %d: got %s want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialDefaults(t *testing.T) {
	if got := Exponential(0, 0, 0); got != DefaultMin {
		t.Fatalf("expected default min, got %s", got)
	}

	if got := Exponential(2, time.Second, time.Millisecond); got != time.Second {
		t.Fatalf("expected max clamped to min, got %s", got)
	}
}

func TestExponentialLargeAttemptCaps(t *testing.T) {
	if got := Exponential(1<<20, time.Millisecond, time.Minute); got != time.Minute {
		t.Fatalf("expected cap, got %s", got)
	}
}

func TestWaitElapses(t *testing.T) {
	if !Wait(context.Background(), time.Millisecond, nil) {
		t.Fatalf("expected wait to elapse")
	}

	var asked time.Duration
	fired := func(d time.Duration) <-chan time.Time {
		asked = d
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	if !Wait(context.Background(), time.Hour, fired) || asked != time.Hour {
		t.Fatalf("expected injected clock to be used, asked=%s", asked)
	}
}

func TestWaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		done <- Wait(ctx, time.Hour, nil)
	}()

	cancel()

	select {
	case elapsed := <-done:
		if elapsed {
			t.Fatalf("expected cancel to interrupt the wait")
		}
	case <-time.After(time.Second):
		t.Fatalf("wait did not return after cancel")
	}

	if Wait(ctx, 0, nil) {
		t.Fatalf("zero wait on a canceled context should report false")
	}
}
