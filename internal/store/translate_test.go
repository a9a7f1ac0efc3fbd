package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMongoFilter(t *testing.T) {
	t.Parallel()

	oid := bson.NewObjectID()

	tests := []struct {
		name   string
		filter Filter
		want   bson.D
	}{
		{
			name:   "empty",
			filter: nil,
			want:   bson.D{},
		},
		{
			name:   "single equality",
			filter: Where(Eq("_id", oid)),
			want:   bson.D{{Key: "_id", Value: oid}},
		},
		{
			name:   "regex is escaped and case-insensitive",
			filter: Where(ContainsFold("name", "a.b*")),
			want: bson.D{{Key: "name", Value: bson.D{
				{Key: "$regex", Value: `a\.b\*`},
				{Key: "$options", Value: "i"},
			}}},
		},
		{
			name:   "conjunction uses $and",
			filter: Where(Eq("category", "Tools"), Lte("age_years", 2.0)),
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "category", Value: "Tools"}},
				bson.D{{Key: "age_years", Value: bson.D{{Key: "$lte", Value: 2.0}}}},
			}}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mongoFilter(tt.filter)

			gotRaw, err := bson.Marshal(got)
			if err != nil {
				t.Fatalf("marshal got: %v", err)
			}
			wantRaw, err := bson.Marshal(tt.want)
			if err != nil {
				t.Fatalf("marshal want: %v", err)
			}
			if string(gotRaw) != string(wantRaw) {
				t.Errorf("mongoFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLWhere(t *testing.T) {
	t.Parallel()

	oid := bson.NewObjectID()

	tests := []struct {
		name     string
		filter   Filter
		start    int
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "empty",
			start:   1,
			wantSQL: "TRUE",
		},
		{
			name:     "object id uses primary key",
			filter:   Where(Eq("_id", oid)),
			start:    1,
			wantSQL:  "id = $1",
			wantArgs: []any{oid.Hex()},
		},
		{
			name:     "string equality",
			filter:   Where(Eq("email", "a@x.io")),
			start:    2,
			wantSQL:  "doc->>'email' = $2",
			wantArgs: []any{"a@x.io"},
		},
		{
			name:     "contains escapes wildcards",
			filter:   Where(ContainsFold("name", "50%_off")),
			start:    1,
			wantSQL:  "doc->>'name' ILIKE $1",
			wantArgs: []any{`%50\%\_off%`},
		},
		{
			name:     "lte casts to numeric",
			filter:   Where(Eq("category", "Tools"), Lte("age_years", 1.5)),
			start:    1,
			wantSQL:  "doc->>'category' = $1 AND (doc->>'age_years')::numeric <= $2",
			wantArgs: []any{"Tools", 1.5},
		},
		{
			name:     "field names are quoted as literals",
			filter:   Where(Eq("o'neil", "x")),
			start:    1,
			wantSQL:  "doc->>'o''neil' = $1",
			wantArgs: []any{"x"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sql, args := sqlWhere(tt.filter, tt.start)
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestSQLOrderLimit(t *testing.T) {
	t.Parallel()

	got := sqlOrderLimit(FindOptions{
		Sort:  []Sort{{Field: "id", Numeric: true, Desc: true}},
		Limit: 1,
	})
	want := " ORDER BY CASE WHEN doc->>'id' ~ '^[0-9]+$' THEN (doc->>'id')::numeric END DESC NULLS LAST LIMIT 1"
	if got != want {
		t.Errorf("sqlOrderLimit() = %q, want %q", got, want)
	}

	got = sqlOrderLimit(FindOptions{Sort: []Sort{{Field: "name"}, {Field: "id", Numeric: true}}})
	want = " ORDER BY doc->>'name', CASE WHEN doc->>'id' ~ '^[0-9]+$' THEN (doc->>'id')::numeric END NULLS LAST"
	if got != want {
		t.Errorf("sqlOrderLimit(mixed) = %q, want %q", got, want)
	}

	if got := sqlOrderLimit(FindOptions{}); got != "" {
		t.Errorf("sqlOrderLimit(empty) = %q, want empty", got)
	}
}

func TestEnsureObjectID(t *testing.T) {
	t.Parallel()

	d, id := ensureObjectID(bson.D{{Key: "email", Value: "a@x.io"}})
	if d[0].Key != "_id" {
		t.Fatalf("expected _id first, got %q", d[0].Key)
	}
	if _, err := bson.ObjectIDFromHex(id); err != nil {
		t.Errorf("id %q is not an ObjectID hex: %v", id, err)
	}

	existing := bson.NewObjectID()
	d, id = ensureObjectID(bson.D{{Key: "_id", Value: existing}})
	if len(d) != 1 || id != existing.Hex() {
		t.Errorf("existing _id not preserved: %v %q", d, id)
	}
}
