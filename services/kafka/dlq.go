package kafka

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"triaright-platform/logger"

	"github.com/google/uuid"
)

// Where a dead letter was parked. Producer letters never reached the broker
// and are replayed by publishing them again; consumer letters are replayed
// through the local handlers.
const (
	OriginProducer = "producer"
	OriginConsumer = "consumer"
)

// DLQMessage is a message that could not be published or processed.
type DLQMessage struct {
	ID         int        `json:"id"`
	MessageID  string     `json:"message_id"`
	Origin     string     `json:"origin"`
	Topic      string     `json:"topic"`
	Key        string     `json:"key"`
	Value      []byte     `json:"value"`
	Error      string     `json:"error_message"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
	Resolved   bool       `json:"resolved"`
	Notes      string     `json:"notes,omitempty"`
	LastRetry  *time.Time `json:"last_retry_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DLQStats counts parked messages.
type DLQStats struct {
	Total      int `json:"total_dlq_messages"`
	Unresolved int `json:"unresolved_messages"`
	Resolved   int `json:"resolved_messages"`
}

// DLQStore persists dead letters.
type DLQStore interface {
	Store(ctx context.Context, msg DLQMessage) error
	ListUnresolved(ctx context.Context, limit int, retryable bool) ([]DLQMessage, error)
	Get(ctx context.Context, messageID string) (*DLQMessage, error)
	MarkRetried(ctx context.Context, messageID string, resolved bool, notes string) error
	Resolve(ctx context.Context, messageID, notes string) error
	Stats(ctx context.Context) (DLQStats, error)
}

// PostgresDLQ keeps dead letters in the dlq_messages table.
type PostgresDLQ struct {
	db *sql.DB
}

func NewPostgresDLQ(db *sql.DB) *PostgresDLQ {
	return &PostgresDLQ{db: db}
}

func (s *PostgresDLQ) Store(ctx context.Context, msg DLQMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	value := msg.Value
	if len(value) == 0 || !json.Valid(value) {
		value, _ = json.Marshal(string(value))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dlq_messages (message_id, topic, message, error_details)
		VALUES ($1, $2, jsonb_build_object('key', $3::text, 'value', $4::jsonb, 'origin', $6::text), $5)
		ON CONFLICT (message_id) DO NOTHING`,
		msg.MessageID, msg.Topic, msg.Key, string(value), msg.Error, msg.Origin)
	if err != nil {
		logger.Error("[DLQ] error storing message: %v", err)
		return err
	}
	logger.Info("[DLQ] message stored, origin=%s topic=%s key=%s", msg.Origin, msg.Topic, msg.Key)
	return nil
}

const dlqColumns = `id, message_id, COALESCE(message->>'origin', ''), topic, message->>'key', message->'value', COALESCE(error_details, ''),
	retry_count, max_retries, resolved, COALESCE(resolution_notes, ''), last_retry_at, created_at`

func scanDLQ(row interface{ Scan(...interface{}) error }) (DLQMessage, error) {
	var m DLQMessage
	var key sql.NullString
	var lastRetry sql.NullTime
	err := row.Scan(&m.ID, &m.MessageID, &m.Origin, &m.Topic, &key, &m.Value, &m.Error,
		&m.RetryCount, &m.MaxRetries, &m.Resolved, &m.Notes, &lastRetry, &m.CreatedAt)
	m.Key = key.String
	if lastRetry.Valid {
		m.LastRetry = &lastRetry.Time
	}
	return m, err
}

func (s *PostgresDLQ) ListUnresolved(ctx context.Context, limit int, retryable bool) ([]DLQMessage, error) {
	query := `SELECT ` + dlqColumns + ` FROM dlq_messages WHERE resolved = FALSE`
	if retryable {
		query += ` AND retry_count < max_retries ORDER BY created_at ASC`
	} else {
		query += ` ORDER BY created_at DESC`
	}
	query += ` LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DLQMessage
	for rows.Next() {
		m, err := scanDLQ(rows)
		if err != nil {
			logger.Error("[DLQ] error scanning message: %v", err)
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresDLQ) Get(ctx context.Context, messageID string) (*DLQMessage, error) {
	m, err := scanDLQ(s.db.QueryRowContext(ctx, `SELECT `+dlqColumns+` FROM dlq_messages WHERE message_id = $1`, messageID))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresDLQ) MarkRetried(ctx context.Context, messageID string, resolved bool, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dlq_messages
		SET retry_count = retry_count + 1, last_retry_at = NOW(),
			resolved = resolved OR $2, resolution_notes = COALESCE(NULLIF($3, ''), resolution_notes)
		WHERE message_id = $1`, messageID, resolved, notes)
	return err
}

func (s *PostgresDLQ) Resolve(ctx context.Context, messageID, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dlq_messages SET resolved = TRUE, resolution_notes = $2 WHERE message_id = $1`, messageID, notes)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	logger.Info("[DLQ] message %s marked as resolved", messageID)
	return nil
}

func (s *PostgresDLQ) Stats(ctx context.Context) (DLQStats, error) {
	var st DLQStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE resolved = FALSE),
			COUNT(*) FILTER (WHERE resolved = TRUE)
		FROM dlq_messages`).Scan(&st.Total, &st.Unresolved, &st.Resolved)
	return st, err
}

// Republisher sends a parked message back to the broker. *Producer implements it.
type Republisher interface {
	Republish(ctx context.Context, topic, key string, value []byte) error
}

// Retrier periodically replays unresolved dead letters: producer letters are
// published again, consumer letters go back through the consumer's handlers.
type Retrier struct {
	store     DLQStore
	consumer  *Consumer
	publisher Republisher
	interval  time.Duration
	batch     int
}

func NewRetrier(store DLQStore, consumer *Consumer, publisher Republisher, interval time.Duration) *Retrier {
	return &Retrier{store: store, consumer: consumer, publisher: publisher, interval: interval, batch: 10}
}

// Run retries on every tick until ctx is done.
func (r *Retrier) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	logger.Info("[DLQ] auto-retry started, interval=%s", r.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[DLQ] auto-retry stopped")
			return
		case <-ticker.C:
			r.RetryPending(ctx)
		}
	}
}

// RetryPending replays one batch of retryable messages and returns how many
// were resolved.
func (r *Retrier) RetryPending(ctx context.Context) int {
	msgs, err := r.store.ListUnresolved(ctx, r.batch, true)
	if err != nil {
		logger.Error("[DLQ] error listing messages for retry: %v", err)
		return 0
	}
	resolved := 0
	for _, m := range msgs {
		logger.Info("[DLQ] auto-retrying %s (attempt %d/%d)", m.MessageID, m.RetryCount+1, m.MaxRetries)
		ok := r.replay(ctx, m)
		if err := r.store.MarkRetried(ctx, m.MessageID, ok, notesFor(ok, "Auto-retried successfully")); err != nil {
			logger.Error("[DLQ] error updating %s: %v", m.MessageID, err)
			continue
		}
		if ok {
			resolved++
		}
	}
	if len(msgs) > 0 {
		logger.Info("[DLQ] auto-retry processed %d messages, %d resolved", len(msgs), resolved)
	}
	return resolved
}

// RetryOne replays a single message on demand.
func (r *Retrier) RetryOne(ctx context.Context, messageID string) (bool, error) {
	m, err := r.store.Get(ctx, messageID)
	if err != nil {
		return false, err
	}
	ok := r.replay(ctx, *m)
	return ok, r.store.MarkRetried(ctx, messageID, ok, notesFor(ok, "Manually retried successfully"))
}

func (r *Retrier) replay(ctx context.Context, m DLQMessage) bool {
	var err error
	switch {
	case m.Origin == OriginProducer && r.publisher != nil:
		err = r.publisher.Republish(ctx, m.Topic, m.Key, m.Value)
	case m.Origin == OriginProducer:
		err = errors.New("no publisher configured")
	default:
		err = r.consumer.process(ctx, m.Topic, m.Key, m.Value)
	}
	if err != nil {
		logger.Warn("[DLQ] replay of %s failed: %v", m.MessageID, err)
		return false
	}
	return true
}

func notesFor(ok bool, note string) string {
	if ok {
		return note
	}
	return ""
}
