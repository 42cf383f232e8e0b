package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"triaright-platform/logger"

	"github.com/segmentio/kafka-go"
)

const publishAttempts = 3

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events with bounded retries. Messages that still fail
// are parked in the DLQ store. A producer without brokers drops everything.
type Producer struct {
	mu        sync.Mutex
	writer    messageWriter
	dlq       DLQStore
	dlqTopic  string
	connected bool
	timeout   time.Duration
	backoff   func(attempt int) time.Duration
}

// NewProducer returns a producer writing to brokers. With no brokers it is a no-op.
func NewProducer(brokers []string, dlqTopic string, dlq DLQStore) *Producer {
	p := &Producer{
		dlq:      dlq,
		dlqTopic: dlqTopic,
		timeout:  5 * time.Second,
		backoff:  exponentialBackoff,
	}
	if len(brokers) == 0 {
		logger.Info("[KAFKA] disabled (KAFKA_BROKERS is empty)")
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		Async:        false,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}
	p.connected = true
	logger.Info("[KAFKA] producer initialized, brokers=%v", brokers)
	return p
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// PublishEvent wraps data in an Event and publishes it.
func (p *Producer) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	evt, err := NewEvent(eventType, data)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, key, evt)
}

// Publish writes evt to topic, retrying with exponential backoff. After the
// last attempt the payload goes to the DLQ and the write error is returned.
func (p *Producer) Publish(ctx context.Context, topic, key string, evt Event) error {
	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	if w == nil {
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("[KAFKA] error marshaling event %s: %v", evt.Event, err)
		return err
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: payload}

	if err := p.write(ctx, w, msg); err != nil {
		logger.Info("[KAFKA] sending failed message to DLQ, topic=%s key=%s", topic, key)
		if dlqErr := p.sendToDLQ(context.WithoutCancel(ctx), topic, key, payload, err.Error()); dlqErr != nil {
			logger.Error("[KAFKA] failed to park message in DLQ: %v", dlqErr)
		}
		return err
	}
	return nil
}

// Republish writes an already-encoded message parked by the producer. It
// never parks again; the DLQ entry itself tracks the retry.
func (p *Producer) Republish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	if w == nil {
		return errors.New("kafka producer is not connected")
	}
	return p.write(ctx, w, kafka.Message{Topic: topic, Key: []byte(key), Value: value})
}

func (p *Producer) write(ctx context.Context, w messageWriter, msg kafka.Message) error {
	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		lastErr = w.WriteMessages(wctx, msg)
		cancel()
		if lastErr == nil {
			p.setConnected(true)
			return nil
		}
		p.setConnected(false)
		logger.Warn("[KAFKA] publish attempt %d to %s failed: %v", attempt+1, msg.Topic, lastErr)

		if attempt == publishAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return lastErr
}

// sendToDLQ stores the message and, when a DLQ topic is configured, mirrors
// it there. An unknown DLQ topic disables the mirror.
func (p *Producer) sendToDLQ(ctx context.Context, topic, key string, value []byte, reason string) error {
	p.mu.Lock()
	w, dlqTopic := p.writer, p.dlqTopic
	p.mu.Unlock()

	if w != nil && dlqTopic != "" && topic != dlqTopic {
		wrapped, _ := json.Marshal(map[string]interface{}{
			"original_topic": topic,
			"original_key":   key,
			"original_value": string(value),
			"error_message":  reason,
			"timestamp":      time.Now().Unix(),
		})
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := w.WriteMessages(wctx, kafka.Message{Topic: dlqTopic, Key: []byte(key), Value: wrapped})
		cancel()
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unknown topic") {
				logger.Warn("[KAFKA] DLQ topic missing on broker; disabling DLQ mirror: %v", err)
				p.mu.Lock()
				p.dlqTopic = ""
				p.mu.Unlock()
			} else {
				logger.Warn("[KAFKA] DLQ publish failed, storing to DB only: %v", err)
			}
		}
	}

	if p.dlq == nil {
		return nil
	}
	return p.dlq.Store(ctx, DLQMessage{Topic: topic, Key: key, Value: value, Error: reason, Origin: OriginProducer})
}

func (p *Producer) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// IsConnected reports whether the last write succeeded.
func (p *Producer) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && p.writer != nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
