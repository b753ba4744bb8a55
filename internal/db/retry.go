package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"
)

// Postgres error codes that are safe to retry.
const (
	PgSerializationFailure = "40001"
	PgDeadlockDetected     = "40P01"
	PgUniqueViolation      = "23505"
	PgCheckViolation       = "23514"
)

// IsTransient reports whether err is a storage failure that may succeed on retry:
// serialization conflicts, deadlocks, and dropped connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// an expired or cancelled request is the caller giving up, not the database
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case PgSerializationFailure, PgDeadlockDetected:
			return true
		}
		return pqErr.Code.Class() == "08" // connection_exception
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsCode reports whether err is a postgres error with the given SQLSTATE code.
func IsCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// Retry runs fn up to attempts times while it fails with a transient error.
// Non-transient errors are returned immediately.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff * time.Duration(i+1)):
		}
	}
	return err
}
