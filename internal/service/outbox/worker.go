package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
	"github.com/cowboyjack911/pc-install-repairhub/internal/metrics"
)

const maxRetryDelay = 5 * time.Second

// Config задаёт расписание опроса и повторы публикации.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryDelay   time.Duration
}

// DefaultConfig возвращает параметры, совпадающие с конфигурацией приложения по умолчанию.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		BatchSize:    100,
		MaxAttempts:  3,
		RetryDelay:   100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// DeadLetter уходит в DLQ-топик, когда событие заявки не удалось опубликовать.
type DeadLetter struct {
	OutboxID  string          `json:"outbox_id"`
	TicketID  string          `json:"ticket_id"`
	EventType string          `json:"event_type"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error"`
	FailedAt  time.Time       `json:"failed_at"`
	Event     json.RawMessage `json:"event"`
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт логгер воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDeadLetters задаёт publisher для DLQ.
func WithDeadLetters(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) {
		w.deadLetters = publisher
	}
}

// WithMetrics включает prometheus-метрики доставки.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// Worker доставляет события заявок из outbox в брокер: pending → sent либо failed + DLQ.
// События одной заявки публикуются по порядку: после сбоя остальные события этой заявки
// остаются pending до следующего цикла.
type Worker struct {
	repo        domain.OutboxRepository
	publisher   domain.OutboxPublisher
	deadLetters domain.OutboxPublisher
	cfg         Config
	metrics     *metrics.OutboxMetrics
	logger      *log.Entry
	now         func() time.Time
}

// NewWorker создаёт воркер; нулевые поля cfg заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, cfg Config, opts ...Option) *Worker {
	w := &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    log.WithField("component", "outbox-worker"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run опрашивает outbox с интервалом PollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	w.logger.WithFields(log.Fields{
		"poll_interval": w.cfg.PollInterval,
		"batch_size":    w.cfg.BatchSize,
	}).Info("Outbox worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("Outbox worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// BatchResult содержит итог одного цикла.
type BatchResult struct {
	Sent   int
	Failed int
	// Held: события, отложенные из-за сбоя более раннего события той же заявки.
	Held int
}

// ProcessOnce выполняет один цикл: забирает пачку pending-событий и публикует их.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}

	events, err := w.repo.PullPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("pull pending outbox messages failed")
		return result
	}

	blocked := make(map[string]struct{})
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if _, ok := blocked[event.AggregateID]; ok {
			result.Held++
			continue
		}

		attempts, err := w.publish(ctx, event)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			blocked[event.AggregateID] = struct{}{}
			w.fail(ctx, event, attempts, err)
			result.Failed++
			continue
		}

		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("could not mark outbox message as sent")
			blocked[event.AggregateID] = struct{}{}
			continue
		}
		result.Sent++
	}

	if len(events) > 0 {
		w.logger.WithFields(log.Fields{
			"sent":   result.Sent,
			"failed": result.Failed,
			"held":   result.Held,
		}).Debug("Outbox batch processed")
	}
	w.refreshBacklog(ctx)
	return result
}

// publish делает до MaxAttempts попыток и возвращает их число.
func (w *Worker) publish(ctx context.Context, event domain.OutboxMessage) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		err := w.publisher.Publish(event)
		if err == nil {
			w.metrics.RecordPublish("sent")
			return attempt, nil
		}
		lastErr = err
		w.metrics.RecordPublish("retry_error")

		if attempt == w.cfg.MaxAttempts {
			break
		}
		if delay := w.backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return w.cfg.MaxAttempts, fmt.Errorf("%w: %d attempts: %w", domain.ErrOutboxPublish, w.cfg.MaxAttempts, lastErr)
}

// backoff удваивает RetryDelay на каждой попытке, не превышая maxRetryDelay.
func (w *Worker) backoff(attempt int) time.Duration {
	delay := w.cfg.RetryDelay
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func (w *Worker) fail(ctx context.Context, event domain.OutboxMessage, attempts int, publishErr error) {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"ticket_id":  event.AggregateID,
		"event_type": event.EventType,
	})
	logger.WithError(publishErr).Error("ticket event publish failed")
	w.metrics.RecordPublish("failed")

	if err := w.sendDeadLetter(event, attempts, publishErr); err != nil {
		logger.WithError(err).Warn("dead letter publish failed")
		w.metrics.RecordPublish("dlq_failed")
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		logger.WithError(err).Warn("could not mark outbox message as failed")
	}
}

func (w *Worker) sendDeadLetter(event domain.OutboxMessage, attempts int, publishErr error) error {
	if w.deadLetters == nil {
		return nil
	}

	letter := DeadLetter{
		OutboxID:  event.ID,
		TicketID:  event.AggregateID,
		EventType: event.EventType,
		Attempts:  attempts,
		LastError: publishErr.Error(),
		FailedAt:  w.now().UTC(),
		Event:     json.RawMessage(event.Payload),
	}
	if !json.Valid(event.Payload) {
		letter.Event = nil
	}
	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	if err := w.deadLetters.Publish(domain.OutboxMessage{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
	}); err != nil {
		return err
	}
	w.metrics.RecordDeadLetter(event.EventType)
	return nil
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("collect outbox backlog stats failed")
		return
	}
	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}
