package domain

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrAlreadySubscribed    = errors.New("subscription_already_active")
	ErrNotCancellable       = errors.New("subscription_not_cancellable")
	ErrNotResumable         = errors.New("subscription_not_resumable")
	ErrProductRequired      = errors.New("product_name_required")
)
