// Package clock abstracts tickers so countdowns and progress simulators can
// be driven by hand in tests.
package clock

import (
	"sync"
	"time"
)

// Ticker is the subset of *time.Ticker the services use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers and reports the current time.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Fake is a manually advanced clock. Each Advance sends one tick on every
// live ticker whose period has elapsed.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	created chan struct{}
}

type fakeTicker struct {
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, created: make(chan struct{}, 16)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{period: d, next: f.now.Add(d), ch: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	select {
	case f.created <- struct{}{}:
	default:
	}
	return &fakeTickerHandle{clock: f, t: t}
}

// WaitForTicker blocks until a ticker has been created since the last call.
func (f *Fake) WaitForTicker() {
	<-f.created
}

// Advance moves time forward by d, delivering ticks one period at a time.
// Sends block until the owning goroutine receives them, so Advance returns
// only after every due tick was consumed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due *fakeTicker
		for _, t := range f.tickers {
			if !t.stopped && !t.next.After(target) && (due == nil || t.next.Before(due.next)) {
				due = t
			}
		}
		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = due.next
		due.next = due.next.Add(due.period)
		now := f.now
		f.mu.Unlock()

		select {
		case due.ch <- now:
		case <-time.After(time.Second):
			// receiver is gone or busy; treat as a dropped tick like time.Ticker
		}
	}
}

type fakeTickerHandle struct {
	clock *Fake
	t     *fakeTicker
}

func (h *fakeTickerHandle) C() <-chan time.Time { return h.t.ch }

func (h *fakeTickerHandle) Stop() {
	h.clock.mu.Lock()
	h.t.stopped = true
	h.clock.mu.Unlock()
}
