package live

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Backoff doubles the wait between reconnects from Min up to Max.
// The zero value waits one second at first and at most five minutes.
type Backoff struct {
	Min, Max time.Duration

	delay time.Duration
}

// Next returns the wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	lo, hi := b.Min, b.Max
	if lo <= 0 {
		lo = time.Second
	}
	if hi <= 0 {
		hi = 5 * time.Minute
	}
	hi = max(hi, lo)
	if b.delay == 0 {
		b.delay = lo
	} else {
		b.delay = min(b.delay*2, hi)
	}
	return b.delay
}

// Reset starts the next failure over at Min.
func (b *Backoff) Reset() {
	b.delay = 0
}

// WithRetry runs c until ctx is cancelled, reconnecting after errors.
//
// The backoff only resets once a connection has delivered a frame.
// A server that accepts the socket and drops it before rendering is still backed off.
func WithRetry(ctx context.Context, c *Client) error {
	var (
		b      Backoff
		framed atomic.Bool
		wait   time.Duration
	)
	c.AddHandler(func(Frame) { framed.Store(true) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		framed.Store(false)
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if framed.Load() {
			b.Reset()
		}
		wait = b.Next()
		slog.Info("board connection lost", "error", err, "frames_received", framed.Load(), "retry_delay", wait.String())
	}
}
