// Package domain contains usage counting contracts and the per-user
// usage overview returned by the API.
package domain

import "math"

const bytesPerMB = 1024 * 1024

// BytesToMB converts a byte sum to megabytes rounded to two decimals.
// All size-based limit arithmetic runs on the rounded values.
func BytesToMB(bytes int64) float64 {
	return math.Round(float64(bytes)/bytesPerMB*100) / 100
}

// ResourceStat describes usage of one countable resource kind.
// Optional sub-counts are nil when the kind does not track them.
type ResourceStat struct {
	Total     int64  `json:"total"`
	Active    *int64 `json:"active,omitempty"`
	Completed *int64 `json:"completed,omitempty"`
	Pending   *int64 `json:"pending,omitempty"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
}

// FileStat describes storage usage in megabytes.
type FileStat struct {
	Total       int64   `json:"total"`
	TotalSizeMB float64 `json:"totalSize"`
	UsedMB      float64 `json:"used"`
	Limit       int64   `json:"limit"`
}

// Stats is the per-resource usage breakdown.
type Stats struct {
	Clients    ResourceStat `json:"clients"`
	Projects   ResourceStat `json:"projects"`
	Notes      ResourceStat `json:"notes"`
	Contracts  ResourceStat `json:"contracts"`
	Files      FileStat     `json:"files"`
	Links      ResourceStat `json:"links"`
	Tasks      ResourceStat `json:"tasks"`
	Valuations ResourceStat `json:"valuations"`
}

// Overview is the full usage breakdown for one user at their current
// premium level.
type Overview struct {
	Stats        Stats `json:"stats"`
	PremiumLevel int   `json:"premium_level"`
}

// LevelCount is one row of the users-by-tier breakdown.
type LevelCount struct {
	PremiumLevel int   `json:"premium_level"`
	UserCount    int64 `json:"user_count"`
}

// GlobalFileStat is total file usage across all users.
type GlobalFileStat struct {
	Count       int64   `json:"count"`
	TotalSizeMB float64 `json:"total_size_mb"`
}

// GlobalUsage totals each resource table across all users.
type GlobalUsage struct {
	Clients    int64          `json:"clients"`
	Projects   int64          `json:"projects"`
	Notes      int64          `json:"notes"`
	Contracts  int64          `json:"contracts"`
	Files      GlobalFileStat `json:"files"`
	Links      int64          `json:"links"`
	Tasks      int64          `json:"tasks"`
	Valuations int64          `json:"valuations"`
}

// AdminStats is the admin view: active users grouped by tier plus
// global usage totals.
type AdminStats struct {
	UsersByLevel []LevelCount `json:"users_by_level"`
	TotalUsage   GlobalUsage  `json:"total_usage"`
}
