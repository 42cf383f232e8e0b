package kafka

import (
	"context"
	"sync"
	"time"

	"triaright-platform/logger"
)

// EventWriter publishes a ready-made envelope. *Producer implements it.
type EventWriter interface {
	Publish(ctx context.Context, topic, key string, evt Event) error
}

// AsyncPublisher hands events to a writer in the background so callers never
// wait on broker retries. Each publish runs detached from the caller's
// cancellation and is bounded by timeout; failures are parked by the writer.
type AsyncPublisher struct {
	writer  EventWriter
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncPublisher(w EventWriter, timeout time.Duration) *AsyncPublisher {
	return &AsyncPublisher{writer: w, timeout: timeout}
}

// PublishEvent builds the envelope synchronously, so only a bad payload is
// reported to the caller, and publishes it on its own goroutine.
func (a *AsyncPublisher) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	evt, err := NewEvent(eventType, data)
	if err != nil {
		return err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.writer.Publish(pctx, topic, key, evt); err != nil {
			logger.Warn("[KAFKA] background publish of %s to %s failed: %v", eventType, topic, err)
		}
	}()
	return nil
}

// Wait blocks until in-flight publishes finish or ctx is done.
func (a *AsyncPublisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
