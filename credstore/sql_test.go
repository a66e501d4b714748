package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempSQLite(t *testing.T) (*SQL, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLite(t *testing.T) {
	s, _ := openTempSQLite(t)
	exerciseStore(t, s)
}

func TestSQLite_Persists(t *testing.T) {
	s, path := openTempSQLite(t)
	require.NoError(t, s.Set(context.Background(), KeyToken, "persisted"))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}

func TestSQLite_EmptyKey(t *testing.T) {
	s, _ := openTempSQLite(t)
	assert.Error(t, s.Set(context.Background(), " ", "v"))
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

func TestSQL_NilStore(t *testing.T) {
	var s *SQL
	assert.NoError(t, s.Close())
	_, err := s.Get(context.Background(), KeyToken)
	assert.Error(t, err)
}

func TestSQL_Rebind(t *testing.T) {
	pg := &SQL{driver: driverPostgres}
	assert.Equal(t,
		"INSERT INTO t (a, b) VALUES ($1, $2)",
		pg.rebind("INSERT INTO t (a, b) VALUES (?, ?)"))

	lite := &SQL{driver: driverSQLite}
	assert.Equal(t, selectQuery, lite.rebind(selectQuery))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("CIRCL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CIRCL_TEST_POSTGRES_DSN not set")
	}
	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}
