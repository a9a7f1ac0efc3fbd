package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered         uint64
	LoginsSucceeded         uint64
	LoginsFailed            uint64
	ProfilesUpdated         uint64
	ItemsCreated            uint64
	ItemsUpdated            uint64
	ItemsDeleted            uint64
	ItemCacheHits           uint64
	ItemCacheMisses         uint64
	ItemLookupCount         uint64
	ItemLookupDurationTotal time.Duration
}

// InMemoryRecorder stores metrics in process memory.
type InMemoryRecorder struct {
	usersRegistered   atomic.Uint64
	loginsSucceeded   atomic.Uint64
	loginsFailed      atomic.Uint64
	profilesUpdated   atomic.Uint64
	itemsCreated      atomic.Uint64
	itemsUpdated      atomic.Uint64
	itemsDeleted      atomic.Uint64
	itemCacheHits     atomic.Uint64
	itemCacheMisses   atomic.Uint64
	itemLookupCount   atomic.Uint64
	itemLookupTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:         m.usersRegistered.Load(),
		LoginsSucceeded:         m.loginsSucceeded.Load(),
		LoginsFailed:            m.loginsFailed.Load(),
		ProfilesUpdated:         m.profilesUpdated.Load(),
		ItemsCreated:            m.itemsCreated.Load(),
		ItemsUpdated:            m.itemsUpdated.Load(),
		ItemsDeleted:            m.itemsDeleted.Load(),
		ItemCacheHits:           m.itemCacheHits.Load(),
		ItemCacheMisses:         m.itemCacheMisses.Load(),
		ItemLookupCount:         m.itemLookupCount.Load(),
		ItemLookupDurationTotal: time.Duration(m.itemLookupTotalNs.Load()),
	}
}

func (m *InMemoryRecorder) IncUserRegistered() { m.usersRegistered.Add(1) }

func (m *InMemoryRecorder) IncLogin(success bool) {
	if success {
		m.loginsSucceeded.Add(1)
		return
	}
	m.loginsFailed.Add(1)
}

func (m *InMemoryRecorder) IncProfileUpdated() { m.profilesUpdated.Add(1) }
func (m *InMemoryRecorder) IncItemCreated()    { m.itemsCreated.Add(1) }
func (m *InMemoryRecorder) IncItemUpdated()    { m.itemsUpdated.Add(1) }
func (m *InMemoryRecorder) IncItemDeleted()    { m.itemsDeleted.Add(1) }
func (m *InMemoryRecorder) IncItemCacheHit()   { m.itemCacheHits.Add(1) }
func (m *InMemoryRecorder) IncItemCacheMiss()  { m.itemCacheMisses.Add(1) }

// ObserveItemLookupDuration records how long a GetByID took.
func (m *InMemoryRecorder) ObserveItemLookupDuration(duration time.Duration) {
	m.itemLookupCount.Add(1)
	m.itemLookupTotalNs.Add(duration.Nanoseconds())
}
