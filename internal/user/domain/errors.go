package domain

import "errors"

var (
	ErrUserNotFound  = errors.New("user_not_found")
	ErrUserIDMissing = errors.New("user_id_required")
)
