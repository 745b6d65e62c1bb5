// internal/forecast/forecast_test.go
//
// Unit-tests for the forecast repository and handlers using sqlmock.
//
// Run: go test ./internal/forecast -v

package forecast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/tenant"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var day = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTemperatureF(t *testing.T) {
	tests := map[int]int{0: 32, -17: 2, 38: 100, -20: -3, 54: 129}
	for c, want := range tests {
		assert.Equal(t, want, Forecast{TemperatureC: c}.TemperatureF(), "C=%d", c)
	}
}

func TestForecastJSON(t *testing.T) {
	raw, err := json.Marshal(Forecast{ID: 1, Date: day, TemperatureC: 38, Summary: "Balmy"})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":1,"date":"2022-01-01T00:00:00Z","temperatureC":38,"temperatureF":100,"summary":"Balmy"}`,
		string(raw))
}

func TestRepositoryList(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, date, temperature_c, summary FROM forecasts ORDER BY date, id`)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, day, -17, "Chilly").
			AddRow(2, day.AddDate(0, 0, 1), 38, "Balmy"))

	got, err := NewRepository(db, database.PostgreSQL).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Chilly", got[0].Summary)
	assert.Equal(t, 38, got[1].TemperatureC)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGet_Placeholders(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM forecasts WHERE id = $1 LIMIT 1`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(3, day, -7, "Sweltering"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM forecasts WHERE id = ? LIMIT 1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(columns))

	f, err := NewRepository(db, database.PostgreSQL).Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Sweltering", f.Summary)

	_, err = NewRepository(db, database.MySQL).Get(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_Returning(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO forecasts (date,temperature_c,summary) VALUES ($1,$2,$3) RETURNING id`)).
		WithArgs(day, int64(-5), "Cool").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	f := Forecast{Date: day, TemperatureC: -5, Summary: "Cool"}
	require.NoError(t, NewRepository(db, database.PostgreSQL).Create(context.Background(), &f))
	assert.Equal(t, int64(4), f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_MySQL(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO forecasts (date,temperature_c,summary) VALUES (?,?,?)`)).
		WithArgs(day, int64(12), "Warn").
		WillReturnResult(sqlmock.NewResult(7, 1))

	f := Forecast{Date: day, TemperatureC: 12, Summary: "Warn"}
	require.NoError(t, NewRepository(db, database.MySQL).Create(context.Background(), &f))
	assert.Equal(t, int64(7), f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDelete(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM forecasts WHERE id = ?`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM forecasts WHERE id = ?`)).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository(db, database.Memory)
	require.NoError(t, repo.Delete(context.Background(), 2))
	assert.ErrorIs(t, repo.Delete(context.Background(), 8), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func serve(t *testing.T, db *sqlx.DB, p database.Provider, h *Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	pool := &tenant.Pool{Tenant: tenant.Tenant{ID: "acme"}, Provider: p, DB: db}
	req = req.WithContext(tenant.WithPool(req.Context(), pool))

	r := chi.NewRouter()
	r.Mount(BasePath, h.Routes())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerList(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM forecasts ORDER BY date`).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(1, day, -17, "Chilly"))

	rr := serve(t, db, database.PostgreSQL, NewHandler(), httptest.NewRequest(http.MethodGet, "/weatherforecast", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Chilly", out[0]["summary"])
	assert.Equal(t, float64(2), out[0]["temperatureF"])
}

func TestHandlerCreate(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO forecasts`).
		WithArgs(now, int64(-18), "Cool").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	h := &Handler{now: func() time.Time { return now }, intn: func(int) int { return 2 }}
	rr := serve(t, db, database.Memory, h, httptest.NewRequest(http.MethodPost, "/weatherforecast", nil))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/weatherforecast/4", rr.Header().Get("Location"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, float64(4), out["id"])
	assert.Equal(t, "Cool", out["summary"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerCreate_RandomBounds(t *testing.T) {
	h := NewHandler()
	for i := 0; i < 200; i++ {
		c := MinTempC + h.intn(MaxTempC-MinTempC)
		assert.True(t, c >= MinTempC && c < MaxTempC, "temperature %d", c)
		assert.Contains(t, Summaries, Summaries[h.intn(len(Summaries))])
	}
}

func TestHandlerGetAndDelete(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE id = \? LIMIT 1`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(1, day, -17, "Chilly"))
	mock.ExpectQuery(`WHERE id = \? LIMIT 1`).WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectExec(`DELETE FROM forecasts`).WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewHandler()
	rr := serve(t, db, database.MySQL, h, httptest.NewRequest(http.MethodGet, "/weatherforecast/1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, db, database.MySQL, h, httptest.NewRequest(http.MethodGet, "/weatherforecast/99", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, db, database.MySQL, h, httptest.NewRequest(http.MethodDelete, "/weatherforecast/1", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(t, db, database.MySQL, h, httptest.NewRequest(http.MethodGet, "/weatherforecast/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerWithoutTenant(t *testing.T) {
	r := chi.NewRouter()
	r.Mount(BasePath, NewHandler().Routes())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/weatherforecast", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
