// Package domain contains the per-tier limit model and the results of
// limit evaluation.
package domain

import (
	"time"
)

// ResourceKind identifies a countable resource a user owns.
type ResourceKind string

const (
	ResourceClients    ResourceKind = "clients"
	ResourceProjects   ResourceKind = "projects"
	ResourceNotes      ResourceKind = "notes"
	ResourceContracts  ResourceKind = "contracts"
	ResourceLinks      ResourceKind = "links"
	ResourceTasks      ResourceKind = "tasks"
	ResourceValuations ResourceKind = "valuations"
	ResourceFilesMB    ResourceKind = "files_mb"
)

// ResourceKinds lists every kind that has a limits row.
var ResourceKinds = []ResourceKind{
	ResourceClients,
	ResourceProjects,
	ResourceNotes,
	ResourceContracts,
	ResourceLinks,
	ResourceTasks,
	ResourceValuations,
	ResourceFilesMB,
}

// IsValidResourceKind reports whether kind is one of the known kinds.
func IsValidResourceKind(kind ResourceKind) bool {
	for _, k := range ResourceKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Limit is one limits row: the allowance for a resource kind at each
// premium level.
type Limit struct {
	Name          string    `gorm:"primaryKey" json:"name"`
	PremiumLevel0 int64     `gorm:"column:premium_level_0;not null" json:"premium_level_0"`
	PremiumLevel1 int64     `gorm:"column:premium_level_1;not null" json:"premium_level_1"`
	PremiumLevel2 int64     `gorm:"column:premium_level_2;not null" json:"premium_level_2"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Limit) TableName() string { return "limits" }

// ForLevel returns the allowance for the given premium level. Levels
// outside {0,1,2} fall back to the free tier.
func (l Limit) ForLevel(level int) int64 {
	switch level {
	case 1:
		return l.PremiumLevel1
	case 2:
		return l.PremiumLevel2
	default:
		return l.PremiumLevel0
	}
}

// CheckResult is the outcome of a count-based limit check.
type CheckResult struct {
	Allowed      bool  `json:"can_add"`
	CurrentCount int64 `json:"current_count"`
	Limit        int64 `json:"limit"`
	PremiumLevel int   `json:"premium_level"`
}

// FileCheckResult is the outcome of a size-based upload check. Sizes
// are megabytes rounded to two decimals.
type FileCheckResult struct {
	Allowed      bool    `json:"can_upload"`
	CurrentMB    float64 `json:"current_size_mb"`
	CandidateMB  float64 `json:"new_file_size_mb"`
	TotalAfterMB float64 `json:"total_after_upload_mb"`
	LimitMB      int64   `json:"limit_mb"`
	PremiumLevel int     `json:"premium_level"`
}
