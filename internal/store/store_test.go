package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, DriverSQLite, s.Driver())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_ResourceIndexMigrated(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_records_resource'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_records_resource", name)
}

func TestOpenDriver_Unknown(t *testing.T) {
	_, err := OpenDriver("mysql", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestOpenDriver_PostgresUsesPgx(t *testing.T) {
	var gotDriver, gotDSN string
	restore := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return nil, errors.New("no database in tests")
	}
	t.Cleanup(func() { sqlOpen = restore })

	_, err := OpenDriver(DriverPostgres, "postgres://localhost/web2")

	require.Error(t, err)
	assert.Equal(t, "pgx", gotDriver)
	assert.Equal(t, "postgres://localhost/web2", gotDSN)
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t,
		"SELECT body FROM records WHERE resource = $1 AND id = $2",
		rebindDollar("SELECT body FROM records WHERE resource = ? AND id = ?"))
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))

	s := &Store{driver: DriverSQLite}
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestStore_CreateAssignsNextID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "users", Record{"name": "alice"})
	require.NoError(t, err)
	second, err := s.Create(ctx, "users", Record{"name": "bob"})
	require.NoError(t, err)
	other, err := s.Create(ctx, "posts", Record{"title": "hi"})
	require.NoError(t, err)

	assert.Equal(t, json.Number("1"), first["id"])
	assert.Equal(t, json.Number("2"), second["id"])
	assert.Equal(t, json.Number("1"), other["id"], "ids are per resource")
}

func TestStore_CreateWithExplicitID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "users", Record{"id": 10, "name": "alice"})
	require.NoError(t, err)

	_, err = s.Create(ctx, "users", Record{"id": 10, "name": "again"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Create(ctx, "users", Record{"id": "abc"})
	assert.ErrorIs(t, err, ErrInvalidID)

	next, err := s.Create(ctx, "users", Record{"name": "bob"})
	require.NoError(t, err)
	id, err := ParseID(next["id"])
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestStore_GetReplacePatchDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "users", Record{"name": "alice", "age": 30})
	require.NoError(t, err)

	got, err := s.Get(ctx, "users", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got["name"])

	replaced, err := s.Replace(ctx, "users", 1, Record{"id": 99, "name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", replaced["name"])
	assert.NotContains(t, replaced, "age", "replace drops fields missing from the body")
	id, err := ParseID(replaced["id"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), id, "stored id wins")

	patched, err := s.Patch(ctx, "users", 1, Record{"age": 41})
	require.NoError(t, err)
	assert.Equal(t, "bob", patched["name"])
	assert.Equal(t, json.Number("41"), patched["age"])

	require.NoError(t, s.Delete(ctx, "users", 1))
	_, err = s.Get(ctx, "users", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "users", 1), ErrNotFound)
	_, err = s.Replace(ctx, "users", 1, Record{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Patch(ctx, "users", 1, Record{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListOrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []int{3, 1, 2} {
		_, err := s.Put(ctx, "users", Record{"id": id, "name": strings.Repeat("x", id)})
		require.NoError(t, err)
	}

	recs, err := s.List(ctx, "users")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		id, err := ParseID(rec["id"])
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	empty, err := s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	names, err := s.Resources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"sorted keys", Record{"name": "a", "age": 1, "id": 2}, `{"age":1,"id":2,"name":"a"}`},
		{"no html escaping", Record{"bio": "<b>&</b>"}, `{"bio":"<b>&</b>"}`},
		{"nfc", Record{"name": "e\u0301"}, "{\"name\":\"\u00e9\"}"},
		{"nested", Record{"tags": []any{"b\u0307"}, "meta": map[string]any{"z": 1, "a": true}},
			"{\"meta\":{\"a\":true,\"z\":1},\"tags\":[\"\u1e03\"]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, rec)

	rec, err = DecodeRecord([]byte(`{"id": 9007199254740993}`))
	require.NoError(t, err)
	id, err := ParseID(rec["id"])
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), id, "large ids keep precision")

	_, err = DecodeRecord([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{7, 7, false},
		{int64(8), 8, false},
		{float64(9), 9, false},
		{"10", 10, false},
		{0, 0, true},
		{-1, 0, true},
		{1.5, 0, true},
		{"x", 0, true},
		{nil, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidID, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSeed_ParseAndApply(t *testing.T) {
	seed, err := ParseSeed(strings.NewReader(`
users:
  - id: 1
    name: alice
    age: 30
  - id: 2
    name: bob
posts:
  - id: 1
    title: hello
    tags: [a, b]
`))
	require.NoError(t, err)
	require.Len(t, seed["users"], 2)

	s := createTestStore(t)
	n, err := s.Apply(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	alice, err := s.Get(context.Background(), "users", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", alice["name"])

	n, err = s.Apply(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "applying twice overwrites")
	recs, err := s.List(context.Background(), "users")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSeed_Errors(t *testing.T) {
	_, err := ParseSeed(strings.NewReader("users:\n  - name: no id\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidID)

	seed, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seed)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
