package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/secondchance/secondchance/internal/auth"
	"github.com/secondchance/secondchance/internal/cache"
	"github.com/secondchance/secondchance/internal/metrics"
	"github.com/secondchance/secondchance/internal/model"
	"github.com/secondchance/secondchance/internal/store"
)

const testSecret = "test-secret"

var errStoreDown = errors.New("store down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type identityEnv struct {
	svc     *IdentityService
	store   *store.Memory
	tokens  *auth.TokenIssuer
	metrics *metrics.InMemoryRecorder
}

func newIdentityEnv(t *testing.T) *identityEnv {
	t.Helper()

	hasher, err := auth.NewHasher(auth.AlgoBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer(testSecret, 0)
	require.NoError(t, err)

	gw := store.NewMemory()
	rec := metrics.NewInMemory()

	return &identityEnv{
		svc:     NewIdentityService(gw, hasher, tokens, discardLogger(), rec),
		store:   gw,
		tokens:  tokens,
		metrics: rec,
	}
}

type listingEnv struct {
	svc     *ListingService
	store   *store.Memory
	cache   *fakeItemCache
	metrics *metrics.InMemoryRecorder
}

func newListingEnv(t *testing.T) *listingEnv {
	t.Helper()

	gw := store.NewMemory()
	c := newFakeItemCache()
	rec := metrics.NewInMemory()

	return &listingEnv{
		svc:     NewListingService(gw, c, discardLogger(), rec),
		store:   gw,
		cache:   c,
		metrics: rec,
	}
}

// fakeItemCache is a map-backed ItemCache.
type fakeItemCache struct {
	mu       sync.Mutex
	items    map[string]model.Item
	negative map[string]bool
}

func newFakeItemCache() *fakeItemCache {
	return &fakeItemCache{
		items:    make(map[string]model.Item),
		negative: make(map[string]bool),
	}
}

func (c *fakeItemCache) GetItem(_ context.Context, id string) (*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[id]; ok {
		return &item, nil
	}
	if c.negative[id] {
		return nil, cache.ErrNegativeHit
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeItemCache) SetItem(_ context.Context, item *model.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = *item
	delete(c.negative, item.ID)
	return nil
}

func (c *fakeItemCache) SetItemNotFound(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[id] = true
	return nil
}

func (c *fakeItemCache) DeleteItem(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	delete(c.negative, id)
	return nil
}

func (c *fakeItemCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

// failingGateway wraps a Gateway and fails selected operations.
type failingGateway struct {
	store.Gateway
	failFind   bool
	failInsert bool
	failSeq    bool
}

func (g *failingGateway) FindOne(ctx context.Context, coll string, f store.Filter) (bson.Raw, error) {
	if g.failFind {
		return nil, errStoreDown
	}
	return g.Gateway.FindOne(ctx, coll, f)
}

func (g *failingGateway) Find(ctx context.Context, coll string, f store.Filter, opts store.FindOptions) ([]bson.Raw, error) {
	if g.failFind {
		return nil, errStoreDown
	}
	return g.Gateway.Find(ctx, coll, f, opts)
}

func (g *failingGateway) InsertOne(ctx context.Context, coll string, doc any) (string, error) {
	if g.failInsert {
		return "", errStoreDown
	}
	return g.Gateway.InsertOne(ctx, coll, doc)
}

func (g *failingGateway) NextSequence(ctx context.Context, name string) (int64, error) {
	if g.failSeq {
		return 0, errStoreDown
	}
	return g.Gateway.NextSequence(ctx, name)
}
