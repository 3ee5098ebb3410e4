package domain

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")

	// ErrEventIgnored marks event types the reconciler does not act on.
	// The webhook still acks with 200 so the provider stops retrying.
	ErrEventIgnored = errors.New("event_ignored")

	ErrProviderNotFound     = errors.New("provider_not_found")
	ErrInvalidConfig        = errors.New("invalid_provider_config")
	ErrSubscriptionNotFound = errors.New("provider_subscription_not_found")
	ErrProviderUnavailable  = errors.New("provider_unavailable")
)
