package health

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec("CREATE TABLE probe (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client
}

func TestReadyHandler_AllDependenciesUp_Returns200(t *testing.T) {
	checker := NewChecker(setupDB(t), setupRedis(t))

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	checker.ReadyHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestReadyHandler_NilDependenciesAreSkipped(t *testing.T) {
	checker := NewChecker(nil, nil)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	checker.ReadyHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyHandler_DatabaseDown_Returns503(t *testing.T) {
	db := setupDB(t)
	db.Close()

	checker := NewChecker(db, setupRedis(t))

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	checker.ReadyHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "database unavailable\n", w.Body.String())
}

func TestReadyHandler_RedisDown_Returns503(t *testing.T) {
	client := setupRedis(t)
	client.Close()

	checker := NewChecker(setupDB(t), client)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	checker.ReadyHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "redis unavailable\n", w.Body.String())
}

func TestReadyHandler_DatabaseCheckedBeforeRedis(t *testing.T) {
	db := setupDB(t)
	client := setupRedis(t)
	db.Close()
	client.Close()

	checker := NewChecker(db, client)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	checker.ReadyHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "database unavailable\n", w.Body.String())
}
