package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Exchange = "jobs"

// dedupTTL bounds how long an idempotency key blocks re-enqueues. Keyed jobs
// are one-shot per lesson lifecycle, so two days is plenty.
const dedupTTL = 48 * time.Hour

// Enqueuer is the side of the queue the core talks to.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Publisher publishes jobs to the jobs topic exchange, deduplicating keyed
// jobs through redis when a client is configured.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPublisher(url string, rdb *redis.Client, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, rdb: rdb, logger: logger}, nil
}

func (p *Publisher) Enqueue(ctx context.Context, job Job) error {
	// Dedup applies to first deliveries only; retries carry the attempt
	// counter and must pass through.
	if job.Key != "" && job.Attempt <= 1 && p.rdb != nil {
		fresh, err := p.rdb.SetNX(ctx, "jobkey:"+job.Key, 1, dedupTTL).Result()
		if err != nil {
			// Dedup is an optimization; a redis outage must not stop jobs.
			p.logger.Warn("job dedup check failed", zap.String("key", job.Key), zap.Error(err))
		} else if !fresh {
			p.logger.Debug("duplicate keyed job skipped", zap.String("key", job.Key))
			return nil
		}
	}

	body, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return p.ch.PublishWithContext(ctx, Exchange, job.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         job.Name,
		MessageId:    job.Key,
		Headers: amqp.Table{
			"x-attempt":      int32(attempt),
			"x-max-attempts": int32(job.MaxAttempts),
			"x-backoff-ms":   job.Backoff.Milliseconds(),
		},
		Body: body,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
