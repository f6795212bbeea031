package database

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
)

var (
	ErrNotFound = errors.New("not found")
)

// SQLSTATE codes treated as transient: serialization_failure,
// deadlock_detected, lock_not_available, query_canceled, admin_shutdown,
// crash_shutdown, cannot_connect_now.
var transientCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"57014": true,
	"57P01": true,
	"57P02": true,
	"57P03": true,
}

// Classify maps a driver error onto the error taxonomy. Missing rows become
// ErrNotFound so callers can choose the domain-specific kind; errors that are
// already classified pass through.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}

	var classified *errs.Error
	if errors.As(err, &classified) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
			return errs.New(errs.KindConstraintViolation, pgErr.Message, err)
		case transientCodes[pgErr.Code], strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"):
			return errs.Transient(op, err)
		}
		return errs.Internal(op, err)
	}

	// Dial and read failures surface as net errors wrapped by pgconn.
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Transient(op, err)
	case errors.As(err, &netErr), pgconn.Timeout(err), pgconn.SafeToRetry(err):
		return errs.Transient(op, err)
	}
	return errs.Internal(op, err)
}
