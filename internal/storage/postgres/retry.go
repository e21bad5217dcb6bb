package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgConnectionClass      = "08"
)

// RetryConfig конфигурация повторов для временных ошибок PostgreSQL.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// withRetry повторяет fn при временных ошибках с экспоненциальной задержкой.
// После исчерпания попыток ошибка оборачивается в domain.ErrStoreUnavailable.
func (s *Store) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := s.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := s.retry.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		err := fn(opCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("Operation succeeded after retry")
			}
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		s.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
		}).WithError(err).Warn("Transient postgres error, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
		if s.retry.MaxDelay > 0 && delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}

	s.logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": attempts,
	}).WithError(lastErr).Error("Operation failed after all retry attempts")
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, operation, lastErr)
}

// isTransient определяет, стоит ли повторять операцию при данной ошибке.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	code := pgErrorCode(err)
	switch {
	case code == pgSerializationFailure, code == pgDeadlockDetected:
		return true
	case strings.HasPrefix(code, pgConnectionClass):
		return true
	case code != "":
		return false
	}
	return pgconn.SafeToRetry(err)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}
