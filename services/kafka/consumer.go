package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"triaright-platform/logger"

	"github.com/segmentio/kafka-go"
)

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, evt Event) error

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads events and routes them by type. Failed events go to the DLQ.
type Consumer struct {
	mu       sync.RWMutex
	reader   messageReader
	handlers map[string]HandlerFunc
	dlq      DLQStore
}

// NewConsumer builds a group reader over topics. With no brokers the consumer
// can still Dispatch (used by the DLQ retrier) but Run returns immediately.
func NewConsumer(brokers []string, groupID string, topics []string, dlq DLQStore) *Consumer {
	c := &Consumer{handlers: make(map[string]HandlerFunc), dlq: dlq}
	if len(brokers) == 0 {
		logger.Info("[KAFKA] consumer disabled (KAFKA_BROKERS is empty)")
		return c
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:          brokers,
		GroupTopics:      topics,
		GroupID:          groupID,
		StartOffset:      kafka.LastOffset,
		CommitInterval:   time.Second,
		MaxBytes:         10e6,
		SessionTimeout:   20 * time.Second,
		ReadBackoffMin:   100 * time.Millisecond,
		ReadBackoffMax:   time.Second,
		QueueCapacity:    100,
		RebalanceTimeout: 60 * time.Second,
	})
	logger.Info("[KAFKA] consumer initialized, brokers=%v topics=%v group=%s", brokers, topics, groupID)
	return c
}

// Handle registers fn for eventType, replacing any previous handler.
func (c *Consumer) Handle(eventType string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = fn
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		return
	}
	logger.Info("[KAFKA] consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("[KAFKA] consumer stop signal received")
				return
			}
			if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "Group Coordinator Not Available") {
				sleep(ctx, 500*time.Millisecond)
				continue
			}
			logger.Warn("[KAFKA] read error: %v", err)
			sleep(ctx, time.Second)
			continue
		}
		_ = c.Dispatch(ctx, msg)
	}
}

// Dispatch handles one message, parking it in the DLQ on failure.
func (c *Consumer) Dispatch(ctx context.Context, msg kafka.Message) error {
	err := c.process(ctx, msg.Topic, string(msg.Key), msg.Value)
	if err == nil {
		return nil
	}
	logger.Error("[KAFKA] %v", err)
	if c.dlq != nil {
		if dlqErr := c.dlq.Store(context.WithoutCancel(ctx), DLQMessage{
			Topic:  msg.Topic,
			Key:    string(msg.Key),
			Value:  msg.Value,
			Error:  err.Error(),
			Origin: OriginConsumer,
		}); dlqErr != nil {
			logger.Error("[KAFKA] failed to park message in DLQ: %v", dlqErr)
		}
	}
	return err
}

func (c *Consumer) process(ctx context.Context, topic, key string, value []byte) error {
	var evt Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return fmt.Errorf("failed to unmarshal message on %s: %w", topic, err)
	}
	if evt.Event == "" {
		return fmt.Errorf("message on %s does not contain an event type", topic)
	}

	c.mu.RLock()
	fn, ok := c.handlers[evt.Event]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.Event)
	}

	logger.Debug("[KAFKA] handling %s key=%s", evt.Event, key)
	if err := fn(ctx, evt); err != nil {
		return fmt.Errorf("handler error for %s: %w", evt.Event, err)
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
