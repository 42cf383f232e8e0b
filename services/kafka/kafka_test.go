package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type memoryDLQ struct {
	mu       sync.Mutex
	messages []DLQMessage
	retried  map[string]bool
}

func (m *memoryDLQ) Store(ctx context.Context, msg DLQMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.MessageID == "" {
		msg.MessageID = "msg-" + string(rune('a'+len(m.messages)))
	}
	msg.MaxRetries = 3
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryDLQ) ListUnresolved(ctx context.Context, limit int, retryable bool) ([]DLQMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DLQMessage
	for _, msg := range m.messages {
		if !msg.Resolved && (!retryable || msg.RetryCount < msg.MaxRetries) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryDLQ) Get(ctx context.Context, id string) (*DLQMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].MessageID == id {
			msg := m.messages[i]
			return &msg, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memoryDLQ) MarkRetried(ctx context.Context, id string, resolved bool, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].MessageID == id {
			m.messages[i].RetryCount++
			m.messages[i].Resolved = m.messages[i].Resolved || resolved
			return nil
		}
	}
	return errors.New("not found")
}

func (m *memoryDLQ) Resolve(ctx context.Context, id, notes string) error {
	return m.MarkRetried(ctx, id, true, notes)
}

func (m *memoryDLQ) Stats(ctx context.Context) (DLQStats, error) {
	return DLQStats{Total: len(m.messages)}, nil
}

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	written  []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("broker not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestProducer(w *fakeWriter, dlq DLQStore) *Producer {
	return &Producer{
		writer:  w,
		dlq:     dlq,
		timeout: time.Second,
		backoff: func(int) time.Duration { return 0 },
	}
}

func TestProducerWithoutBrokersIsNoop(t *testing.T) {
	p := NewProducer(nil, "dlq", nil)
	if err := p.PublishEvent(context.Background(), TopicExams, "1", EventExamSubmitted, map[string]int{"attempt_id": 1}); err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if p.IsConnected() {
		t.Error("Expected producer without brokers to report disconnected")
	}
}

func TestProducerRetriesThenSucceeds(t *testing.T) {
	w := &fakeWriter{failures: 2}
	dlq := &memoryDLQ{}
	p := newTestProducer(w, dlq)

	if err := p.PublishEvent(context.Background(), TopicPayments, "order_1", EventPaymentVerified, map[string]string{"order_id": "order_1"}); err != nil {
		t.Fatalf("Expected publish to succeed on third attempt, got %v", err)
	}
	if len(w.written) != 1 {
		t.Fatalf("Expected 1 written message, got %d", len(w.written))
	}
	if len(dlq.messages) != 0 {
		t.Errorf("Expected empty DLQ, got %d messages", len(dlq.messages))
	}

	var evt Event
	if err := json.Unmarshal(w.written[0].Value, &evt); err != nil {
		t.Fatalf("Expected event envelope, got %v", err)
	}
	if evt.Event != EventPaymentVerified || evt.ID == "" {
		t.Errorf("Unexpected envelope %+v", evt)
	}
}

func TestProducerParksFailedMessageInDLQ(t *testing.T) {
	w := &fakeWriter{failures: publishAttempts}
	dlq := &memoryDLQ{}
	p := newTestProducer(w, dlq)

	err := p.PublishEvent(context.Background(), TopicEmails, "a@b.c", EventEmailSend, map[string]string{"to": "a@b.c"})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("Expected 1 DLQ message, got %d", len(dlq.messages))
	}
	if dlq.messages[0].Topic != TopicEmails || dlq.messages[0].Key != "a@b.c" || dlq.messages[0].Origin != OriginProducer {
		t.Errorf("Unexpected DLQ message %+v", dlq.messages[0])
	}
}

func message(t *testing.T, eventType string, data interface{}) kafka.Message {
	t.Helper()
	evt, err := NewEvent(eventType, data)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(evt)
	return kafka.Message{Topic: TopicEmails, Key: []byte("k"), Value: raw}
}

func TestConsumerDispatch(t *testing.T) {
	dlq := &memoryDLQ{}
	c := NewConsumer(nil, "group", nil, dlq)

	var got struct {
		To string `json:"to"`
	}
	c.Handle(EventEmailSend, func(ctx context.Context, evt Event) error {
		return evt.Decode(&got)
	})

	if err := c.Dispatch(context.Background(), message(t, EventEmailSend, map[string]string{"to": "x@y.z"})); err != nil {
		t.Fatalf("Expected dispatch to succeed, got %v", err)
	}
	if got.To != "x@y.z" {
		t.Errorf("Expected decoded recipient x@y.z, got %q", got.To)
	}

	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{"invalid json", kafka.Message{Topic: TopicEmails, Value: []byte("{")}},
		{"missing event type", kafka.Message{Topic: TopicEmails, Value: []byte(`{"id":"1"}`)}},
		{"unknown event type", message(t, "something.else", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(dlq.messages)
			if err := c.Dispatch(context.Background(), tt.msg); err == nil {
				t.Fatal("Expected dispatch error")
			}
			if len(dlq.messages) != before+1 {
				t.Errorf("Expected message parked in DLQ")
			}
		})
	}
}

func TestRetrierResolvesAfterHandlerRecovers(t *testing.T) {
	dlq := &memoryDLQ{}
	c := NewConsumer(nil, "group", nil, dlq)

	fail := true
	c.Handle(EventEmailSend, func(ctx context.Context, evt Event) error {
		if fail {
			return errors.New("smtp down")
		}
		return nil
	})

	_ = c.Dispatch(context.Background(), message(t, EventEmailSend, map[string]string{"to": "x@y.z"}))
	if len(dlq.messages) != 1 {
		t.Fatalf("Expected 1 parked message, got %d", len(dlq.messages))
	}

	r := NewRetrier(dlq, c, nil, time.Minute)
	if n := r.RetryPending(context.Background()); n != 0 {
		t.Errorf("Expected no resolutions while handler fails, got %d", n)
	}
	if dlq.messages[0].RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", dlq.messages[0].RetryCount)
	}
	if len(dlq.messages) != 1 {
		t.Errorf("Replay must not park a second copy, got %d messages", len(dlq.messages))
	}

	fail = false
	ok, err := r.RetryOne(context.Background(), dlq.messages[0].MessageID)
	if err != nil || !ok {
		t.Fatalf("Expected manual retry to succeed, got ok=%v err=%v", ok, err)
	}
	if !dlq.messages[0].Resolved {
		t.Error("Expected message to be resolved")
	}
}

func TestRetrierRepublishesProducerMessages(t *testing.T) {
	w := &fakeWriter{failures: publishAttempts}
	dlq := &memoryDLQ{}
	p := newTestProducer(w, dlq)

	if err := p.PublishEvent(context.Background(), TopicPayments, "order_1", EventPaymentVerified, map[string]string{"order_id": "order_1"}); err == nil {
		t.Fatal("Expected publish to fail while broker is down")
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("Expected 1 parked message, got %d", len(dlq.messages))
	}
	parked := dlq.messages[0]

	// No consumer handler exists for payment.verified; the retrier must not need one.
	r := NewRetrier(dlq, NewConsumer(nil, "group", nil, dlq), p, time.Minute)

	w.failures = publishAttempts
	if n := r.RetryPending(context.Background()); n != 0 {
		t.Errorf("Expected no resolutions while broker is down, got %d", n)
	}
	if len(dlq.messages) != 1 {
		t.Errorf("Republish must not park a second copy, got %d messages", len(dlq.messages))
	}

	if n := r.RetryPending(context.Background()); n != 1 {
		t.Fatalf("Expected 1 resolution once broker recovers, got %d", n)
	}
	if !dlq.messages[0].Resolved || dlq.messages[0].RetryCount != 2 {
		t.Errorf("Expected resolved after 2 retries, got %+v", dlq.messages[0])
	}
	if len(w.written) != 1 {
		t.Fatalf("Expected 1 republished message, got %d", len(w.written))
	}
	if w.written[0].Topic != TopicPayments || string(w.written[0].Key) != "order_1" || string(w.written[0].Value) != string(parked.Value) {
		t.Errorf("Expected original message republished, got %+v", w.written[0])
	}
}

func TestRetrierWithoutPublisherKeepsProducerMessages(t *testing.T) {
	dlq := &memoryDLQ{}
	_ = dlq.Store(context.Background(), DLQMessage{Origin: OriginProducer, Topic: TopicPayments, Key: "k", Value: []byte(`{}`)})

	r := NewRetrier(dlq, NewConsumer(nil, "group", nil, dlq), nil, time.Minute)
	if n := r.RetryPending(context.Background()); n != 0 {
		t.Errorf("Expected 0 resolutions, got %d", n)
	}
	if dlq.messages[0].Resolved {
		t.Error("Expected message to stay unresolved")
	}
}

// hangingWriter blocks every write until its context ends.
type hangingWriter struct {
	entered chan struct{}
}

func (w *hangingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	select {
	case w.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (w *hangingWriter) Close() error { return nil }

func TestAsyncPublisherDoesNotWaitOnBroker(t *testing.T) {
	w := &hangingWriter{entered: make(chan struct{}, 1)}
	dlq := &memoryDLQ{}
	p := &Producer{writer: w, dlq: dlq, timeout: time.Hour, backoff: func(int) time.Duration { return 0 }}
	a := NewAsyncPublisher(p, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.PublishEvent(ctx, TopicPayments, "order_1", EventPaymentVerified, map[string]string{"order_id": "order_1"}); err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	// The request finishing must not abort the background publish.
	cancel()

	select {
	case <-w.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected background write to start")
	}

	wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wcancel()
	if err := a.Wait(wctx); err != nil {
		t.Fatalf("Expected publish to give up within its timeout, got %v", err)
	}
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	if len(dlq.messages) != 1 || dlq.messages[0].Origin != OriginProducer {
		t.Errorf("Expected timed-out event parked in DLQ, got %+v", dlq.messages)
	}
}

func TestAsyncPublisherRejectsBadPayload(t *testing.T) {
	a := NewAsyncPublisher(newTestProducer(&fakeWriter{}, &memoryDLQ{}), time.Second)
	if err := a.PublishEvent(context.Background(), TopicExams, "1", EventExamSubmitted, make(chan int)); err == nil {
		t.Error("Expected marshal error for unencodable payload")
	}
}
