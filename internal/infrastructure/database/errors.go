package database

import "errors"

var (
	// ErrNoPath is returned by Open when Config.Path is empty.
	ErrNoPath = errors.New("database path is required")

	// ErrBadMigration is returned when a migration file name or pairing is invalid.
	ErrBadMigration = errors.New("invalid migration")
)
