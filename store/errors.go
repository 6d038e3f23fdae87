package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports that no row matched the id and filter.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalid reports a record that failed validation before reaching the database.
	ErrInvalid = errors.New("invalid record")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
