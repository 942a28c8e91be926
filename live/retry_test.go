package live

import (
	"context"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tt := map[string]struct {
		Backoff  Backoff
		Expected []time.Duration
	}{
		"defaults": {
			Expected: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
		"capped": {
			Backoff:  Backoff{Min: 10 * time.Millisecond, Max: 30 * time.Millisecond},
			Expected: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 30 * time.Millisecond},
		},
		"max below min": {
			Backoff:  Backoff{Min: time.Second, Max: time.Millisecond},
			Expected: []time.Duration{time.Second, time.Second},
		},
	}
	for name, tc := range tt {
		b := tc.Backoff
		for i, expected := range tc.Expected {
			if got := b.Next(); got != expected {
				t.Errorf("%s: attempt %d: expected %v; got %v", name, i, expected, got)
			}
		}
		b.Reset()
		if got := b.Next(); got != tc.Expected[0] {
			t.Errorf("%s: expected %v after reset; got %v", name, tc.Expected[0], got)
		}
	}
}

func TestWithRetryDeliversFrames(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.url + "?width=200&height=100")
	frames := make(chan Frame, 1)
	c.AddHandler(func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WithRetry(ctx, c) }()

	select {
	case <-frames:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a frame")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error after cancel; got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected WithRetry to return after cancel")
	}
}

func TestWithRetryStopsWhileWaiting(t *testing.T) {
	// nothing listens here, so every attempt fails
	c := NewClient("ws://127.0.0.1:1/ws")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := WithRetry(ctx, c); err != nil {
		t.Errorf("expected nil error; got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected WithRetry to stop with its context; took %v", elapsed)
	}
}
