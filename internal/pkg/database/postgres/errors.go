package postgres

import (
	"errors"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SQLSTATE codes that mean "another transaction got there first".
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"

	codeInvalidTextRepresentation = "22P02"
)

// IsConcurrencyConflict reports whether err was caused by lock contention.
// Such operations are safe to retry as a whole.
func IsConcurrencyConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return true
	}
	return false
}

// IsUniqueViolation reports a duplicate key. The only unique keys written
// concurrently are order numbers, so a duplicate means another transaction
// won the race.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

func isMalformedInput(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeInvalidTextRepresentation
}

// IsID reports whether id can name a row. Lookups short-circuit on anything
// else, so a malformed id reads as "not found" instead of a driver error.
func IsID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Classify turns lock contention and duplicate keys into CONCURRENCY_CONFLICT
// and values Postgres cannot parse into VALIDATION. Every other error passes
// through unchanged.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case IsConcurrencyConflict(err):
		return apperror.Conflict(err, op, "resource is locked by a concurrent operation, retry")
	case IsUniqueViolation(err):
		return apperror.Conflict(err, op, "a concurrent operation wrote the same key, retry")
	case isMalformedInput(err):
		return apperror.Invalid(op, "malformed identifier or value")
	}
	return err
}
