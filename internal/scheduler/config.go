package scheduler

import "time"

// Config controls job intervals and timeouts.
type Config struct {
	// DriftCheckInterval is how often local subscription state is
	// compared against provider truth.
	DriftCheckInterval time.Duration

	// KeepAliveInterval is how often the service pings its own health
	// endpoint so the hosting platform does not idle it out.
	KeepAliveInterval time.Duration

	JobTimeout time.Duration

	// APIURL is the service's own public base URL. Empty disables the
	// keep-alive job.
	APIURL string
}

func DefaultConfig() Config {
	return Config{
		DriftCheckInterval: time.Hour,
		KeepAliveInterval:  14 * time.Minute,
		JobTimeout:         5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.DriftCheckInterval <= 0 {
		c.DriftCheckInterval = defaults.DriftCheckInterval
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = defaults.KeepAliveInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
