// Package worker runs station sync jobs delivered over Pub/Sub: each job
// resolves a unit's bounding box, looks up its stations and archives them.
package worker

import "time"

// SyncConfig holds configuration for the station sync job.
type SyncConfig struct {
	// Concurrency is the number of units synced at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the sync of a single unit.
	// Default: 60 seconds
	Timeout time.Duration

	// DefaultBufferKM is used when a message gives no buffer.
	// Default: 0
	DefaultBufferKM float64
}

// DefaultSyncConfig returns the default sync configuration.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Concurrency: 3,
		Timeout:     60 * time.Second,
	}
}

func (c SyncConfig) withDefaults() SyncConfig {
	d := DefaultSyncConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
