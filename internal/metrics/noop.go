package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserRegistered()                               {}
func (n *NoopRecorder) IncLogin(success bool)                            {}
func (n *NoopRecorder) IncProfileUpdated()                               {}
func (n *NoopRecorder) IncItemCreated()                                  {}
func (n *NoopRecorder) IncItemUpdated()                                  {}
func (n *NoopRecorder) IncItemDeleted()                                  {}
func (n *NoopRecorder) IncItemCacheHit()                                 {}
func (n *NoopRecorder) IncItemCacheMiss()                                {}
func (n *NoopRecorder) ObserveItemLookupDuration(duration time.Duration) {}
