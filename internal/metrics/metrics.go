// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Identity metrics
	IncUserRegistered()
	IncLogin(success bool)
	IncProfileUpdated()

	// Listing metrics
	IncItemCreated()
	IncItemUpdated()
	IncItemDeleted()

	// Item lookup cache
	IncItemCacheHit()
	IncItemCacheMiss()
	ObserveItemLookupDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
