package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultTimeout bounds every store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Mongo is a Gateway backed by MongoDB.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, uri, database string, timeout time.Duration) (*Mongo, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	m := &Mongo{
		client:  client,
		db:      client.Database(database),
		timeout: timeout,
	}

	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return m, nil
}

func (m *Mongo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// FindOne implements Gateway.
func (m *Mongo) FindOne(ctx context.Context, collection string, filter Filter) (bson.Raw, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	raw, err := m.db.Collection(collection).FindOne(ctx, mongoFilter(filter)).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find one in %s: %w", collection, err)
	}

	return raw, nil
}

// Find implements Gateway.
func (m *Mongo) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]bson.Raw, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cursor, err := m.db.Collection(collection).Find(ctx, mongoFilter(filter), mongoFindOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]bson.Raw, 0)
	for cursor.Next(ctx) {
		// cursor.Current is reused between iterations.
		docs = append(docs, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}

	return docs, nil
}

// InsertOne implements Gateway.
func (m *Mongo) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}

	return idString(res.InsertedID), nil
}

// FindOneAndUpdate implements Gateway.
func (m *Mongo) FindOneAndUpdate(ctx context.Context, collection string, filter Filter, set bson.M) (bson.Raw, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	raw, err := m.db.Collection(collection).
		FindOneAndUpdate(ctx, mongoFilter(filter), bson.D{{Key: "$set", Value: set}}, opts).
		Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("find one and update in %s: %w", collection, err)
	}

	return raw, nil
}

// DeleteOne implements Gateway.
func (m *Mongo) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.db.Collection(collection).DeleteOne(ctx, mongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}

	return res.DeletedCount, nil
}

type counterDoc struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// NextSequence implements Gateway using an upserting $inc.
func (m *Mongo) NextSequence(ctx context.Context, name string) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counterDoc
	err := m.db.Collection(CollectionCounters).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}

	return c.Seq, nil
}

// EnsureSequenceAtLeast implements Gateway using $max.
func (m *Mongo) EnsureSequenceAtLeast(ctx context.Context, name string, n int64) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.db.Collection(CollectionCounters).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$max", Value: bson.D{{Key: "seq", Value: n}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("raise sequence %s: %w", name, err)
	}

	return nil
}

// EnsureIndexes implements Gateway.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.db.Collection(CollectionUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}

	_, err = m.db.Collection(CollectionItems).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("items_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create items id index: %w", err)
	}

	return nil
}

// Ping checks MongoDB connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// mongoFilter translates a Filter into a MongoDB query document.
func mongoFilter(f Filter) bson.D {
	if len(f) == 0 {
		return bson.D{}
	}

	clauses := make(bson.A, 0, len(f))
	for _, c := range f {
		clauses = append(clauses, mongoCond(c))
	}

	if len(clauses) == 1 {
		return clauses[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

func mongoCond(c Cond) bson.D {
	switch c.Op {
	case OpContainsFold:
		pattern := regexp.QuoteMeta(fmt.Sprint(c.Value))
		return bson.D{{Key: c.Field, Value: bson.D{
			{Key: "$regex", Value: pattern},
			{Key: "$options", Value: "i"},
		}}}
	case OpLte:
		return bson.D{{Key: c.Field, Value: bson.D{{Key: "$lte", Value: c.Value}}}}
	default:
		return bson.D{{Key: c.Field, Value: c.Value}}
	}
}

func mongoFindOptions(opts FindOptions) *options.FindOptionsBuilder {
	fo := options.Find()

	if len(opts.Sort) > 0 {
		sort := make(bson.D, 0, len(opts.Sort))
		numeric := false
		for _, s := range opts.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
			numeric = numeric || s.Numeric
		}
		fo.SetSort(sort)
		if numeric {
			fo.SetCollation(&options.Collation{Locale: "en", NumericOrdering: true})
		}
	}

	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}

	return fo
}

func idString(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
