package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counters(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncUserRegistered()
	m.IncLogin(true)
	m.IncLogin(false)
	m.IncLogin(false)
	m.IncItemCreated()
	m.IncItemUpdated()
	m.IncItemDeleted()
	m.IncItemCacheHit()
	m.IncItemCacheMiss()
	m.ObserveItemLookupDuration(2 * time.Millisecond)
	m.ObserveItemLookupDuration(3 * time.Millisecond)

	s := m.Snapshot()
	if s.UsersRegistered != 1 || s.LoginsSucceeded != 1 || s.LoginsFailed != 2 {
		t.Errorf("identity counters = %+v", s)
	}
	if s.ItemsCreated != 1 || s.ItemsUpdated != 1 || s.ItemsDeleted != 1 {
		t.Errorf("item counters = %+v", s)
	}
	if s.ItemLookupCount != 2 || s.ItemLookupDurationTotal != 5*time.Millisecond {
		t.Errorf("lookup duration = %d / %v", s.ItemLookupCount, s.ItemLookupDurationTotal)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncItemCreated()
		}()
	}
	wg.Wait()

	if got := m.Snapshot().ItemsCreated; got != 100 {
		t.Errorf("ItemsCreated = %d, want 100", got)
	}
}
