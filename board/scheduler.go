package board

import (
	"time"
)

// Scheduler paces the glow animation.
type Scheduler interface {
	// Now returns the time since the scheduler started.
	Now() time.Duration

	// RequestFrame calls fn once, at the time the next frame should be drawn.
	// fn may be called from any goroutine.
	RequestFrame(fn func(ts time.Duration))
}

// DefaultFPS is the animation frame rate of a TimerScheduler created with a rate of zero.
const DefaultFPS = 30

// TimerScheduler calls frame requests after a fixed interval.
type TimerScheduler struct {
	Interval time.Duration
	epoch    time.Time
}

// NewTimerScheduler returns a scheduler running at fps frames per second.
func NewTimerScheduler(fps int) *TimerScheduler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &TimerScheduler{
		Interval: time.Second / time.Duration(fps),
		epoch:    time.Now(),
	}
}

func (s *TimerScheduler) Now() time.Duration {
	return time.Since(s.epoch)
}

func (s *TimerScheduler) RequestFrame(fn func(time.Duration)) {
	time.AfterFunc(s.Interval, func() {
		fn(s.Now())
	})
}
