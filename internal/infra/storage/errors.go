package storage

import (
	"context"
	"errors"
	"strings"

	"exchange_go/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATEs that abort a transaction without it being at fault.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement/lock timeout)
}

// classify wraps storage aborts as *domain.TransientError and leaves every
// other error, including business errors raised inside the transaction, as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientPgCodes[pgErr.Code] {
		return &domain.TransientError{Op: op, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransientError{Op: op, Err: err}
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return &domain.TransientError{Op: op, Err: err}
	}

	return err
}
