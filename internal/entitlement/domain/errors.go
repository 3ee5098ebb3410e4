package domain

import "errors"

var (
	// ErrUnknownResource rejects kinds outside the whitelist before any
	// SQL runs.
	ErrUnknownResource = errors.New("unknown_resource")

	// ErrLimitNotConfigured means the limits row for a known kind is
	// missing. That is an operator error, not a user error.
	ErrLimitNotConfigured = errors.New("limit_not_configured")

	ErrInvalidLimitValue = errors.New("invalid_limit_value")
	ErrInvalidFileSize   = errors.New("invalid_file_size")
)
