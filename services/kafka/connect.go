package kafka

import (
	"context"
	"strings"
	"time"

	"triaright-platform/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics creates the given topics, retrying with exponential backoff
// while the broker comes up. Existing topics count as created.
func EnsureTopics(ctx context.Context, brokers []string, topics []string) {
	if len(brokers) == 0 || len(topics) == 0 {
		return
	}
	const maxRetries = 5
	for attempt := 0; attempt < maxRetries; attempt++ {
		wait := time.Second
		if attempt > 0 {
			wait = exponentialBackoff(attempt)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			if attempt == maxRetries-1 {
				logger.Warn("[KAFKA] could not reach broker for topic creation after %d attempts: %v", maxRetries, err)
			}
			continue
		}

		created := 0
		for _, topic := range topics {
			err := conn.CreateTopics(kafka.TopicConfig{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			})
			if err == nil || strings.Contains(err.Error(), "already exists") {
				created++
				continue
			}
			logger.Warn("[KAFKA] creating topic %s: %v", topic, err)
		}
		conn.Close()

		if created == len(topics) {
			logger.Info("[KAFKA] topics ready: %v", topics)
			return
		}
	}
}
