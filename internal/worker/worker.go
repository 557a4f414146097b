// Package worker consumes the job queues and runs the processors behind
// them. Every run, including skips and failures, lands in job_runs.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

// Handler processes one job. The returned result is serialized into the
// job_runs record.
type Handler func(ctx context.Context, jobName string, body []byte) (result any, err error)

type Worker struct {
	amqpURL  string
	enqueuer queue.Enqueuer
	jobRuns  *repository.JobRunRepository
	logger   *zap.Logger
	handlers map[string]Handler

	consumers []*queue.Consumer
	wg        sync.WaitGroup
}

func New(amqpURL string, enqueuer queue.Enqueuer, jobRuns *repository.JobRunRepository, logger *zap.Logger) *Worker {
	return &Worker{
		amqpURL:  amqpURL,
		enqueuer: enqueuer,
		jobRuns:  jobRuns,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

func (w *Worker) Handle(queueName string, handler Handler) {
	w.handlers[queueName] = handler
}

// Run opens one consumer per registered queue and blocks until the context
// is cancelled and all in-flight deliveries have finished.
func (w *Worker) Run(ctx context.Context) error {
	for queueName, handler := range w.handlers {
		consumer, err := queue.NewConsumer(w.amqpURL, queueName, 5)
		if err != nil {
			w.closeAll()
			return err
		}
		deliveries, err := consumer.Deliveries(ctx)
		if err != nil {
			_ = consumer.Close()
			w.closeAll()
			return err
		}
		w.consumers = append(w.consumers, consumer)

		w.wg.Add(1)
		go func(queueName string, handler Handler, deliveries <-chan amqp.Delivery) {
			defer w.wg.Done()
			w.logger.Info("worker consuming", zap.String("queue", queueName))
			for delivery := range deliveries {
				w.process(ctx, queueName, handler, delivery)
			}
			w.logger.Info("worker stopped", zap.String("queue", queueName))
		}(queueName, handler, deliveries)
	}

	<-ctx.Done()
	w.closeAll()
	w.wg.Wait()
	return nil
}

func (w *Worker) closeAll() {
	for _, consumer := range w.consumers {
		_ = consumer.Close()
	}
}

func (w *Worker) process(ctx context.Context, queueName string, handler Handler, delivery amqp.Delivery) {
	jobName := delivery.Type
	jobID := delivery.MessageId
	if jobID == "" {
		jobID = uuid.NewString()
	}
	attempt := headerInt(delivery.Headers, "x-attempt", 1)
	maxAttempts := headerInt(delivery.Headers, "x-max-attempts", 1)
	backoff := time.Duration(headerInt(delivery.Headers, "x-backoff-ms", 5000)) * time.Millisecond
	tenantID := tenantFromPayload(delivery.Body)
	startedAt := time.Now()

	w.logRun(ctx, repository.JobRunInput{
		TenantID:  tenantID,
		JobName:   jobName,
		JobID:     jobID,
		Status:    "running",
		Payload:   delivery.Body,
		StartedAt: &startedAt,
	})

	result, err := handler(ctx, jobName, delivery.Body)
	completedAt := time.Now()

	if err != nil {
		w.logger.Error("job failed",
			zap.String("queue", queueName),
			zap.String("job", jobName),
			zap.String("job_id", jobID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		errMsg := err.Error()
		w.logRun(ctx, repository.JobRunInput{
			TenantID:    tenantID,
			JobName:     jobName,
			JobID:       jobID,
			Status:      "failed",
			Payload:     delivery.Body,
			Error:       &errMsg,
			StartedAt:   &startedAt,
			CompletedAt: &completedAt,
		})
		if attempt < maxAttempts {
			w.retry(queueName, jobName, delivery.Body, attempt, maxAttempts, backoff)
		}
		_ = delivery.Ack(false)
		return
	}

	var resultJSON []byte
	if result != nil {
		resultJSON, _ = json.Marshal(result)
	}
	w.logRun(ctx, repository.JobRunInput{
		TenantID:    tenantID,
		JobName:     jobName,
		JobID:       jobID,
		Status:      "completed",
		Payload:     delivery.Body,
		Result:      resultJSON,
		StartedAt:   &startedAt,
		CompletedAt: &completedAt,
	})
	_ = delivery.Ack(false)
}

// retryDelay doubles per failed attempt: backoff, 2x, 4x.
func retryDelay(backoff time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return backoff << (attempt - 1)
}

// retry republishes the job after an exponential delay. The worker holds the
// delay in a timer since the broker has no delayed delivery of its own.
func (w *Worker) retry(queueName, jobName string, body []byte, attempt, maxAttempts int, backoff time.Duration) {
	time.AfterFunc(retryDelay(backoff, attempt), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := w.enqueuer.Enqueue(ctx, queue.Job{
			Queue:       queueName,
			Name:        jobName,
			Attempt:     attempt + 1,
			MaxAttempts: maxAttempts,
			Backoff:     backoff,
			Payload:     json.RawMessage(body),
		})
		if err != nil {
			w.logger.Error("failed to requeue job",
				zap.String("queue", queueName),
				zap.String("job", jobName),
				zap.Error(err))
		}
	})
}

func (w *Worker) logRun(ctx context.Context, input repository.JobRunInput) {
	if err := w.jobRuns.Log(ctx, input); err != nil {
		w.logger.Error("failed to record job run",
			zap.String("job", input.JobName),
			zap.String("job_id", input.JobID),
			zap.Error(err))
	}
}

func headerInt(headers amqp.Table, key string, fallback int) int {
	switch v := headers[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func tenantFromPayload(body []byte) string {
	var envelope struct {
		TenantID string `json:"tenantId"`
	}
	_ = json.Unmarshal(body, &envelope)
	return envelope.TenantID
}
