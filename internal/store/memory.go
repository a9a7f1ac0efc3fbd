package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// uniqueFields lists the fields each collection keeps unique.
var uniqueFields = map[string][]string{
	CollectionUsers: {"email"},
	CollectionItems: {"id"},
}

// Memory is an in-process Gateway. It is used by tests and by
// STORE_DRIVER=memory for local runs without a database.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]bson.D
	counters    map[string]int64
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]bson.D),
		counters:    make(map[string]int64),
	}
}

// FindOne implements Gateway.
func (m *Memory) FindOne(_ context.Context, collection string, filter Filter) (bson.Raw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			return bson.Marshal(d)
		}
	}

	return nil, ErrNotFound
}

// Find implements Gateway.
func (m *Memory) Find(_ context.Context, collection string, filter Filter, opts FindOptions) ([]bson.Raw, error) {
	m.mu.RLock()
	matched := make([]bson.D, 0)
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			matched = append(matched, d)
		}
	}
	m.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, s := range opts.Sort {
				if c := compareField(matched[i], matched[j], s); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}

	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	docs := make([]bson.Raw, 0, len(matched))
	for _, d := range matched {
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		docs = append(docs, raw)
	}

	return docs, nil
}

// InsertOne implements Gateway.
func (m *Memory) InsertOne(_ context.Context, collection string, doc any) (string, error) {
	d, err := toDocument(doc)
	if err != nil {
		return "", err
	}
	d, id := ensureObjectID(d)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.violatesUnique(collection, d, -1) {
		return "", ErrDuplicateKey
	}

	m.collections[collection] = append(m.collections[collection], d)
	return id, nil
}

// FindOneAndUpdate implements Gateway.
func (m *Memory) FindOneAndUpdate(_ context.Context, collection string, filter Filter, set bson.M) (bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	for i, d := range docs {
		if !matches(d, filter) {
			continue
		}

		// Round-trip through BSON so stored values match what a real
		// driver would read back (e.g. time.Time becomes bson.DateTime).
		updated, err := toDocument(setFields(d, set))
		if err != nil {
			return nil, err
		}
		if m.violatesUnique(collection, updated, i) {
			return nil, ErrDuplicateKey
		}

		docs[i] = updated
		return bson.Marshal(updated)
	}

	return nil, ErrNotFound
}

// DeleteOne implements Gateway.
func (m *Memory) DeleteOne(_ context.Context, collection string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	for i, d := range docs {
		if matches(d, filter) {
			m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}

	return 0, nil
}

// NextSequence implements Gateway.
func (m *Memory) NextSequence(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[name]++
	return m.counters[name], nil
}

// EnsureSequenceAtLeast implements Gateway.
func (m *Memory) EnsureSequenceAtLeast(_ context.Context, name string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counters[name] < n {
		m.counters[name] = n
	}
	return nil
}

// EnsureIndexes is a no-op; unique fields are always enforced.
func (m *Memory) EnsureIndexes(_ context.Context) error { return nil }

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close(_ context.Context) error { return nil }

// violatesUnique reports whether d collides with another document on a
// unique field. skip is the index of d itself during updates, or -1.
func (m *Memory) violatesUnique(collection string, d bson.D, skip int) bool {
	for _, field := range uniqueFields[collection] {
		v, ok := lookup(d, field)
		if !ok {
			continue
		}
		for i, other := range m.collections[collection] {
			if i == skip {
				continue
			}
			if ov, ok := lookup(other, field); ok && valuesEqual(v, ov) {
				return true
			}
		}
	}
	return false
}
