package common

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Error kinds the handlers translate into HTTP status codes. Services
// wrap these with %w so callers can match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrDuplicateSlug = errors.New("slug already in use")
	ErrValidation    = errors.New("validation failed")
)

// IsUniqueViolation reports whether err is a sqlite unique-constraint
// failure, matched on the driver's error code rather than its message.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
