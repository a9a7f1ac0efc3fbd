package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Postgres is a Gateway that keeps each collection in a JSONB table.
// Documents are stored as relaxed Extended JSON so BSON types round-trip.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgres creates a connection pool and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string, timeout time.Duration) (*Postgres, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool, timeout: timeout}, nil
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// FindOne implements Gateway.
func (p *Postgres) FindOne(ctx context.Context, collection string, filter Filter) (bson.Raw, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	where, args := sqlWhere(filter, 1)
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s LIMIT 1`, pq.QuoteIdentifier(collection), where)

	var data []byte
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find one in %s: %w", collection, err)
	}

	return docFromJSON(data)
}

// Find implements Gateway.
func (p *Postgres) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]bson.Raw, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	where, args := sqlWhere(filter, 1)
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s%s`, pq.QuoteIdentifier(collection), where, sqlOrderLimit(opts))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]bson.Raw, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := docFromJSON(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}

	return docs, nil
}

// InsertOne implements Gateway. A missing _id is filled with a new ObjectID.
func (p *Postgres) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	d, err := toDocument(doc)
	if err != nil {
		return "", err
	}
	d, id := ensureObjectID(d)

	data, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, pq.QuoteIdentifier(collection))
	if _, err := p.pool.Exec(ctx, query, id, string(data)); err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}

	return id, nil
}

// FindOneAndUpdate implements Gateway by merging set into the stored document.
func (p *Postgres) FindOneAndUpdate(ctx context.Context, collection string, filter Filter, set bson.M) (bson.Raw, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	patch, err := bson.MarshalExtJSON(set, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}

	table := pq.QuoteIdentifier(collection)
	where, args := sqlWhere(filter, 2)
	query := fmt.Sprintf(`
		UPDATE %[1]s SET doc = doc || $1::jsonb
		WHERE id = (SELECT id FROM %[1]s WHERE %[2]s LIMIT 1 FOR UPDATE)
		RETURNING doc
	`, table, where)

	var data []byte
	err = p.pool.QueryRow(ctx, query, append([]any{string(patch)}, args...)...).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("find one and update in %s: %w", collection, err)
	}

	return docFromJSON(data)
}

// DeleteOne implements Gateway.
func (p *Postgres) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	table := pq.QuoteIdentifier(collection)
	where, args := sqlWhere(filter, 1)
	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE id = (SELECT id FROM %[1]s WHERE %[2]s LIMIT 1)`, table, where)

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}

	return tag.RowsAffected(), nil
}

// NextSequence implements Gateway.
func (p *Postgres) NextSequence(ctx context.Context, name string) (int64, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (name, seq) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = %[1]s.seq + 1
		RETURNING seq
	`, pq.QuoteIdentifier(CollectionCounters))

	var seq int64
	if err := p.pool.QueryRow(ctx, query, name).Scan(&seq); err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}

	return seq, nil
}

// EnsureSequenceAtLeast implements Gateway.
func (p *Postgres) EnsureSequenceAtLeast(ctx context.Context, name string, n int64) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (name, seq) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET seq = GREATEST(%[1]s.seq, EXCLUDED.seq)
	`, pq.QuoteIdentifier(CollectionCounters))

	if _, err := p.pool.Exec(ctx, query, name, n); err != nil {
		return fmt.Errorf("raise sequence %s: %w", name, err)
	}

	return nil
}

// EnsureIndexes creates the collection tables and their unique indexes.
func (p *Postgres) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	stmts := make([]string, 0, 5)
	for _, coll := range []string{CollectionUsers, CollectionItems} {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`,
			pq.QuoteIdentifier(coll),
		))
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, seq BIGINT NOT NULL)`,
			pq.QuoteIdentifier(CollectionCounters)),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique ON %s ((doc->>'email'))`,
			pq.QuoteIdentifier(CollectionUsers)),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS items_id_unique ON %s ((doc->>'id'))`,
			pq.QuoteIdentifier(CollectionItems)),
	)

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close(_ context.Context) error {
	p.pool.Close()
	return nil
}

// sqlWhere renders a Filter as a SQL boolean expression over the doc column.
// Placeholders are numbered from start.
func sqlWhere(f Filter, start int) (string, []any) {
	if len(f) == 0 {
		return "TRUE", nil
	}

	clauses := make([]string, 0, len(f))
	args := make([]any, 0, len(f))
	n := start

	for _, c := range f {
		field := "doc->>" + pq.QuoteLiteral(c.Field)

		switch {
		case c.Field == "_id" && c.Op == OpEq:
			clauses = append(clauses, fmt.Sprintf("id = $%d", n))
			args = append(args, idString(c.Value))
		case c.Op == OpContainsFold:
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", field, n))
			args = append(args, "%"+escapeLike(fmt.Sprint(c.Value))+"%")
		case c.Op == OpLte:
			clauses = append(clauses, fmt.Sprintf("(%s)::numeric <= $%d", field, n))
			args = append(args, c.Value)
		case isNumber(c.Value):
			clauses = append(clauses, fmt.Sprintf("(%s)::numeric = $%d", field, n))
			args = append(args, c.Value)
		default:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", field, n))
			args = append(args, fmt.Sprint(c.Value))
		}
		n++
	}

	return strings.Join(clauses, " AND "), args
}

func sqlOrderLimit(opts FindOptions) string {
	var b strings.Builder

	if len(opts.Sort) > 0 {
		parts := make([]string, 0, len(opts.Sort))
		for _, s := range opts.Sort {
			expr := "doc->>" + pq.QuoteLiteral(s.Field)
			if s.Numeric {
				// Non-numeric values sort as NULL, after every number.
				expr = "CASE WHEN " + expr + " ~ '^[0-9]+$' THEN (" + expr + ")::numeric END"
			}
			if s.Desc {
				expr += " DESC"
			}
			if s.Numeric {
				expr += " NULLS LAST"
			}
			parts = append(parts, expr)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	return b.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func docFromJSON(data []byte) (bson.Raw, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	return raw, nil
}
