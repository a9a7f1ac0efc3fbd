package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/secondchance/secondchance/internal/cache"
	"github.com/secondchance/secondchance/internal/metrics"
	"github.com/secondchance/secondchance/internal/model"
	"github.com/secondchance/secondchance/internal/store"
)

// Update outcomes reported to clients.
const (
	UploadSuccess = "success"
	UploadFailed  = "failed"
)

// ItemCache is the read-through cache used by GetByID.
type ItemCache interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	SetItem(ctx context.Context, item *model.Item) error
	SetItemNotFound(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error
}

// ListingService handles item business logic.
type ListingService struct {
	store   store.Gateway
	cache   ItemCache
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewListingService creates a new ListingService. itemCache may be nil.
func NewListingService(gw store.Gateway, itemCache ItemCache, logger *slog.Logger, recorder metrics.Recorder) *ListingService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ListingService{
		store:   gw,
		cache:   itemCache,
		logger:  logger,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ItemFilter narrows List results. Zero values are ignored.
type ItemFilter struct {
	Name        string
	Category    string
	Condition   string
	MaxAgeYears *float64
}

func (f ItemFilter) storeFilter() store.Filter {
	var conds []store.Cond
	if f.Name != "" {
		conds = append(conds, store.ContainsFold("name", f.Name))
	}
	if f.Category != "" {
		conds = append(conds, store.Eq("category", f.Category))
	}
	if f.Condition != "" {
		conds = append(conds, store.Eq("condition", f.Condition))
	}
	if f.MaxAgeYears != nil {
		conds = append(conds, store.Lte("age_years", *f.MaxAgeYears))
	}
	return store.Where(conds...)
}

// List returns all items matching filter ordered by id.
func (s *ListingService) List(ctx context.Context, filter ItemFilter) ([]*model.Item, error) {
	docs, err := s.store.Find(ctx, store.CollectionItems, filter.storeFilter(), store.FindOptions{
		Sort: []store.Sort{{Field: "id", Numeric: true}},
	})
	if err != nil {
		return nil, internalError("find items", err)
	}

	items := make([]*model.Item, 0, len(docs))
	for _, raw := range docs {
		item, err := decodeItem(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// GetByID returns a single item, consulting the cache first.
func (s *ListingService) GetByID(ctx context.Context, id string) (*model.Item, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveItemLookupDuration(time.Since(start))
	}()

	if s.cache != nil {
		item, err := s.cache.GetItem(ctx, id)
		switch {
		case err == nil:
			s.metrics.IncItemCacheHit()
			return item, nil
		case errors.Is(err, cache.ErrNegativeHit):
			s.metrics.IncItemCacheHit()
			return nil, ErrItemNotFound
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.IncItemCacheMiss()
		default:
			s.logger.Warn("item cache read failed", "item_id", id, "error", err)
		}
	}

	raw, err := s.store.FindOne(ctx, store.CollectionItems, store.Where(store.Eq("id", id)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if s.cache != nil {
				if cerr := s.cache.SetItemNotFound(ctx, id); cerr != nil {
					s.logger.Warn("item negative cache write failed", "item_id", id, "error", cerr)
				}
			}
			return nil, ErrItemNotFound
		}
		return nil, internalError("find item", err)
	}

	item, err := decodeItem(raw)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetItem(ctx, item); err != nil {
			s.logger.Warn("item cache write failed", "item_id", id, "error", err)
		}
	}

	return item, nil
}

// CreateItemInput holds the accepted fields for a new item.
type CreateItemInput struct {
	Name        string
	Category    string
	Condition   string
	PostedBy    string
	Zipcode     string
	Description string
	Image       string
	AgeDays     int
}

// Create assigns the next item id and stores the item.
func (s *ListingService) Create(ctx context.Context, input CreateItemInput) (*model.Item, error) {
	if input.Name == "" {
		return nil, invalid("name", "is required")
	}
	if input.AgeDays < 0 {
		return nil, invalid("age_days", "must not be negative")
	}

	seq, err := s.store.NextSequence(ctx, store.SequenceItems)
	if err != nil {
		return nil, internalError("next item id", err)
	}

	item := &model.Item{
		ID:          strconv.FormatInt(seq, 10),
		Name:        input.Name,
		Category:    input.Category,
		Condition:   input.Condition,
		PostedBy:    input.PostedBy,
		Zipcode:     input.Zipcode,
		Description: input.Description,
		Image:       input.Image,
		DateAdded:   s.now().Unix(),
	}
	item.SetAgeDays(input.AgeDays)

	if _, err := s.store.InsertOne(ctx, store.CollectionItems, item); err != nil {
		return nil, internalError("insert item", err)
	}

	s.invalidate(ctx, item.ID)
	s.metrics.IncItemCreated()
	s.logger.Info("item_created", "item_id", item.ID, "category", item.Category)

	return item, nil
}

// UpdateItemInput holds the mutable item fields. Nil fields are left as is.
type UpdateItemInput struct {
	ID          string
	Category    *string
	Condition   *string
	Description *string
	AgeDays     *int
}

// UpdateItemResult reports the outcome of Update.
type UpdateItemResult struct {
	Status string
	Item   *model.Item
}

// Update patches an item. age_years is recomputed in the same write
// whenever age_days is given.
func (s *ListingService) Update(ctx context.Context, input UpdateItemInput) (*UpdateItemResult, error) {
	if input.AgeDays != nil && *input.AgeDays < 0 {
		return nil, invalid("age_days", "must not be negative")
	}

	filter := store.Where(store.Eq("id", input.ID))

	if _, err := s.store.FindOne(ctx, store.CollectionItems, filter); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, internalError("find item", err)
	}

	now := s.now()
	set := bson.M{"updatedAt": now}
	if input.Category != nil {
		set["category"] = *input.Category
	}
	if input.Condition != nil {
		set["condition"] = *input.Condition
	}
	if input.Description != nil {
		set["description"] = *input.Description
	}
	if input.AgeDays != nil {
		set["age_days"] = *input.AgeDays
		set["age_years"] = model.AgeYears(*input.AgeDays)
	}

	raw, err := s.store.FindOneAndUpdate(ctx, store.CollectionItems, filter, set)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between the existence check and the write.
			return &UpdateItemResult{Status: UploadFailed}, nil
		}
		return nil, internalError("update item", err)
	}

	item, err := decodeItem(raw)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, input.ID)
	s.metrics.IncItemUpdated()
	s.logger.Info("item_updated", "item_id", input.ID)

	return &UpdateItemResult{Status: UploadSuccess, Item: item}, nil
}

// Delete removes an item.
func (s *ListingService) Delete(ctx context.Context, id string) error {
	n, err := s.store.DeleteOne(ctx, store.CollectionItems, store.Where(store.Eq("id", id)))
	if err != nil {
		return internalError("delete item", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}

	s.invalidate(ctx, id)
	s.metrics.IncItemDeleted()
	s.logger.Info("item_deleted", "item_id", id)

	return nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Inserted int
	Skipped  bool
}

// Import loads a catalogue of items into an empty store, keeping their
// ids, and then raises the id sequence past them. A store that already
// holds items is left untouched.
func (s *ListingService) Import(ctx context.Context, items []*model.Item) (*ImportResult, error) {
	existing, err := s.store.Find(ctx, store.CollectionItems, nil, store.FindOptions{Limit: 1})
	if err != nil {
		return nil, internalError("check items", err)
	}
	if len(existing) > 0 {
		s.logger.Info("items_already_present", "skipped", len(items))
		return &ImportResult{Skipped: true}, nil
	}

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, invalid("id", "is required for imported item "+strconv.Itoa(i))
		}
		if n, err := strconv.ParseInt(item.ID, 10, 64); err != nil || n <= 0 {
			return nil, invalid("id", "must be a positive integer, got "+strconv.Quote(item.ID))
		}
		if _, dup := seen[item.ID]; dup {
			return nil, invalid("id", "is duplicated: "+item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Name == "" {
			return nil, invalid("name", "is required for imported item "+item.ID)
		}
		if item.AgeDays < 0 {
			return nil, invalid("age_days", "must not be negative for imported item "+item.ID)
		}
	}

	now := s.now().Unix()
	inserted := 0
	for _, item := range items {
		item.SetAgeDays(item.AgeDays)
		if item.DateAdded == 0 {
			item.DateAdded = now
		}
		if _, err := s.store.InsertOne(ctx, store.CollectionItems, item); err != nil {
			return &ImportResult{Inserted: inserted}, internalError("insert item "+item.ID, err)
		}
		inserted++
	}

	if _, err := s.SyncSequence(ctx); err != nil {
		return &ImportResult{Inserted: inserted}, err
	}

	s.logger.Info("items_imported", "count", inserted)
	return &ImportResult{Inserted: inserted}, nil
}

// SyncSequence raises the item id sequence to the highest numeric id
// already stored, so ids of imported items are never reissued.
func (s *ListingService) SyncSequence(ctx context.Context) (int64, error) {
	docs, err := s.store.Find(ctx, store.CollectionItems, nil, store.FindOptions{
		Sort:  []store.Sort{{Field: "id", Desc: true, Numeric: true}},
		Limit: 1,
	})
	if err != nil {
		return 0, internalError("find max item id", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	item, err := decodeItem(docs[0])
	if err != nil {
		return 0, err
	}

	maxID, err := strconv.ParseInt(item.ID, 10, 64)
	if err != nil {
		s.logger.Warn("highest item id is not numeric", "item_id", item.ID)
		return 0, nil
	}

	if err := s.store.EnsureSequenceAtLeast(ctx, store.SequenceItems, maxID); err != nil {
		return 0, internalError("raise item sequence", err)
	}

	return maxID, nil
}

func (s *ListingService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteItem(ctx, id); err != nil {
		s.logger.Warn("item cache invalidation failed", "item_id", id, "error", err)
	}
}

func decodeItem(raw bson.Raw) (*model.Item, error) {
	var item model.Item
	if err := bson.Unmarshal(raw, &item); err != nil {
		return nil, internalError("decode item", err)
	}
	return &item, nil
}
