package store

import "errors"

var (
	// ErrTagKeyInvalid is returned when a tag key contains the reserved
	// field delimiter. The write is rejected before any mutation.
	ErrTagKeyInvalid = errors.New("quire: tag key contains reserved delimiter")

	// ErrMissingTableName is returned when the store is configured without
	// a table name.
	ErrMissingTableName = errors.New("quire: table name is required")
)
