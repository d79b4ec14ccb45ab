package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyExists indicates a record with the same ID already exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates concurrent writers touched the same records.
	// Last-write-wins callers may skip the operation.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrConstraint indicates a field assertion rejected the value.
	ErrConstraint = errors.New("constraint violation")

	// ErrNoResult indicates a write returned no record.
	ErrNoResult = errors.New("no result returned")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel. Errors that are not query errors pass through unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, "already exists"):
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		case strings.Contains(msg, "assertion"), strings.Contains(msg, "Couldn't coerce"):
			return fmt.Errorf("%w: %s", ErrConstraint, msg)
		}
	}

	return err
}
