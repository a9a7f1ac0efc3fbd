// Package store provides the document store gateway used by the services.
//
// A Gateway hides connection lifecycle and collection naming behind a small
// set of collection-scoped operations. Documents travel as bson.Raw so the
// same service code runs against MongoDB, PostgreSQL (JSONB) or memory.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Collection names.
const (
	CollectionUsers    = "users"
	CollectionItems    = "secondChanceItems"
	CollectionCounters = "counters"
)

// SequenceItems is the counter that hands out item IDs.
const SequenceItems = "items"

// Common gateway errors.
var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Gateway is the document store boundary.
type Gateway interface {
	// FindOne returns the first document matching filter, or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Filter) (bson.Raw, error)

	// Find returns every matching document. The result is fully
	// materialised; an error aborts the whole call.
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]bson.Raw, error)

	// InsertOne stores doc and returns the generated _id in string form.
	// Returns ErrDuplicateKey when a unique index is violated.
	InsertOne(ctx context.Context, collection string, doc any) (string, error)

	// FindOneAndUpdate applies set to the first matching document and
	// returns the document after the update, or ErrNotFound.
	FindOneAndUpdate(ctx context.Context, collection string, filter Filter, set bson.M) (bson.Raw, error)

	// DeleteOne removes the first matching document and reports how many
	// documents were removed (0 or 1).
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)

	// NextSequence atomically increments the named counter and returns the
	// new value. A missing counter starts at 1.
	NextSequence(ctx context.Context, name string) (int64, error)

	// EnsureSequenceAtLeast raises the named counter to n if it is lower.
	EnsureSequenceAtLeast(ctx context.Context, name string, n int64) error

	// EnsureIndexes creates the unique indexes the services rely on.
	EnsureIndexes(ctx context.Context) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Op is a predicate operator.
type Op int

const (
	// OpEq matches documents whose field equals Value.
	OpEq Op = iota
	// OpContainsFold matches string fields containing Value, ignoring case.
	OpContainsFold
	// OpLte matches numeric fields less than or equal to Value.
	OpLte
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpContainsFold:
		return "contains_fold"
	case OpLte:
		return "lte"
	default:
		return "unknown"
	}
}

// Cond is a single predicate on a document field.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Cond

// Where builds a Filter from conditions.
func Where(conds ...Cond) Filter {
	return Filter(conds)
}

// Eq is an equality condition.
func Eq(field string, value any) Cond {
	return Cond{Field: field, Op: OpEq, Value: value}
}

// ContainsFold is a case-insensitive substring condition.
func ContainsFold(field, substr string) Cond {
	return Cond{Field: field, Op: OpContainsFold, Value: substr}
}

// Lte is an inclusive upper-bound condition.
func Lte(field string, value any) Cond {
	return Cond{Field: field, Op: OpLte, Value: value}
}

// Sort orders results by a single field.
// Numeric sorts compare string fields holding decimal numbers by value.
type Sort struct {
	Field   string
	Desc    bool
	Numeric bool
}

// FindOptions controls ordering and size of Find results.
type FindOptions struct {
	Sort  []Sort
	Limit int64
}
