// Package progress tracks video watching and course completion.
package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"triaright-platform/clock"
)

// DefaultThreshold is the watched percentage that completes a subtopic.
const DefaultThreshold = 90

// ClampThreshold keeps a configured threshold inside 80..95.
func ClampThreshold(v float64) float64 {
	switch {
	case v <= 0:
		return DefaultThreshold
	case v < 80:
		return 80
	case v > 95:
		return 95
	}
	return v
}

// Tracker follows one subtopic. Its completion callback fires once, the
// first time the watched percentage reaches the threshold. A failing
// callback re-arms it.
type Tracker struct {
	mu         sync.Mutex
	duration   float64
	threshold  float64
	percent    float64
	fired      bool
	inFlight   bool
	onComplete func(ctx context.Context) error
}

func NewTracker(durationSeconds int, threshold float64, onComplete func(ctx context.Context) error) *Tracker {
	return &Tracker{
		duration:   float64(durationSeconds),
		threshold:  threshold,
		onComplete: onComplete,
	}
}

// percentOf returns position as a share of duration, 0..100.
func percentOf(position, duration float64) float64 {
	if duration <= 0 {
		return 100
	}
	p := position / duration * 100
	return math.Max(0, math.Min(100, math.Round(p*100)/100))
}

// Observe records a player position in seconds. It reports the percentage
// and whether this call completed the subtopic.
func (t *Tracker) Observe(ctx context.Context, position float64) (float64, bool, error) {
	t.mu.Lock()
	pct := percentOf(position, t.duration)
	if pct > t.percent {
		t.percent = pct
	}
	if t.fired || t.inFlight || t.percent < t.threshold {
		p := t.percent
		t.mu.Unlock()
		return p, false, nil
	}
	t.inFlight = true
	p := t.percent
	t.mu.Unlock()

	err := t.onComplete(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight = false
	if err != nil {
		return p, false, err
	}
	t.fired = true
	return p, true, nil
}

// seed raises the watched percentage from a previously stored position
// without firing the callback.
func (t *Tracker) seed(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pct := percentOf(position, t.duration); pct > t.percent {
		t.percent = pct
	}
}

// Completed reports whether the callback has fired successfully.
func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Percent returns the highest percentage observed.
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// Simulate advances the position by interval on every tick, for sources
// that cannot report player time. It returns when the tracker completes,
// the callback fails or ctx ends.
func Simulate(ctx context.Context, clk clock.Clock, t *Tracker, start float64, interval time.Duration) error {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	position := start
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			position += interval.Seconds()
			_, done, err := t.Observe(ctx, position)
			if err != nil {
				return err
			}
			if done || t.Completed() {
				return nil
			}
		}
	}
}
