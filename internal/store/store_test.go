package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the shared contract against any backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	v, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", v)

	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, _, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, kv.Remove(ctx, "k"))
	_, found, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Remove(ctx, "k"), "removing an absent key succeeds")
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	kv, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "kv.db"))
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	kv, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "predictions", "[]"))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer kv.Close()
	v, found, err := kv.Get(ctx, "predictions")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", v)
}

func TestPebble(t *testing.T) {
	kv, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(ctx, Options{Backend: BackendPebble, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Pebble{}, kv)
	require.NoError(t, kv.Close())

	kv, err = Open(ctx, Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	require.NoError(t, kv.Close())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Options{Backend: "redis"})
	require.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendPebble})
	require.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendPostgres})
	require.Error(t, err)
}

// ============================================================
// Postgres (mocked DBTX)
// ============================================================

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func TestPostgres_Get_Found(t *testing.T) {
	db := new(mockDBTX)
	kv := NewPostgres(db, nil)

	db.On("QueryRow", mock.Anything, `SELECT value FROM kv_entries WHERE key = $1`, []any{"k"}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*(dest[0].(*string)) = "blob"
			return nil
		}})

	v, found, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "blob", v)
	db.AssertExpectations(t)
}

func TestPostgres_Get_NoRows(t *testing.T) {
	db := new(mockDBTX)
	kv := NewPostgres(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, found, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgres_Get_Error(t *testing.T) {
	db := new(mockDBTX)
	kv := NewPostgres(db, nil)

	dbErr := errors.New("connection reset")
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: dbErr})

	_, _, err := kv.Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestPostgres_SetAndRemove(t *testing.T) {
	db := new(mockDBTX)
	kv := NewPostgres(db, nil)

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return len(sql) > 6 && sql[:6] == "INSERT"
	}), []any{"k", "v"}).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	db.On("Exec", mock.Anything, `DELETE FROM kv_entries WHERE key = $1`, []any{"k"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, kv.Set(context.Background(), "k", "v"))
	require.NoError(t, kv.Remove(context.Background(), "k"))
	db.AssertExpectations(t)
}

func TestPostgres_SetError(t *testing.T) {
	db := new(mockDBTX)
	kv := NewPostgres(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("read-only transaction"))

	require.Error(t, kv.Set(context.Background(), "k", "v"))
}

func TestPostgres_EnsureSchema(t *testing.T) {
	db := new(mockDBTX)
	kv := NewPostgres(db, nil)

	db.On("Exec", mock.Anything, kvSchema, mock.Anything).
		Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, kv.EnsureSchema(context.Background()))
	db.AssertExpectations(t)
}
