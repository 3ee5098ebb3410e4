package domain

import "context"

type Service interface {
	// CheckResource decides whether userID may create one more item of
	// the given kind. The count and the limit are read in one
	// transaction so the decision is taken on a consistent snapshot.
	CheckResource(ctx context.Context, userID string, kind ResourceKind) (*CheckResult, error)

	// CheckFileUpload decides whether a file of fileSizeBytes fits in
	// the user's storage allowance.
	CheckFileUpload(ctx context.Context, userID string, fileSizeBytes int64) (*FileCheckResult, error)

	ListLimits(ctx context.Context) ([]Limit, error)

	// UpdateLimits replaces the per-tier values for the given kinds.
	// The whole batch is applied in one transaction or not at all.
	UpdateLimits(ctx context.Context, updates []Limit) error
}
