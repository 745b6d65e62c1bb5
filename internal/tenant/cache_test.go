package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/database"
)

// fakeOpener hands out sqlmock-backed pools and counts opens.
type fakeOpener struct {
	opens atomic.Int32
	fail  map[string]error
}

func (f *fakeOpener) Open(_ context.Context, t Tenant) (*sqlx.DB, error) {
	if err := f.fail[t.Name()]; err != nil {
		return nil, err
	}
	f.opens.Add(1)
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	mock.ExpectClose()
	return sqlx.NewDb(db, "sqlmock"), nil
}

func TestPools_GetCachesAndDedupes(t *testing.T) {
	o := &fakeOpener{}
	p := newPools(o, time.Hour, 10, time.Hour, zap.NewNop().Sugar())
	defer p.Close()

	acme := Tenant{ID: "acme", ConnectionString: "x", Provider: "mysql"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Get(context.Background(), acme)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pool, err := p.Get(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, int32(1), o.opens.Load())
	assert.Equal(t, database.MySQL, pool.Provider)
	assert.Equal(t, 1, p.Len())
}

func TestPools_OpenError(t *testing.T) {
	boom := errors.New("boom")
	o := &fakeOpener{fail: map[string]error{"acme": boom}}
	p := newPools(o, time.Hour, 10, time.Hour, zap.NewNop().Sugar())
	defer p.Close()

	_, err := p.Get(context.Background(), Tenant{ID: "acme"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Len())
}

func TestPools_EvictIdleAndLRU(t *testing.T) {
	o := &fakeOpener{}
	p := newPools(o, time.Minute, 2, time.Hour, zap.NewNop().Sugar())
	defer p.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := p.Get(ctx, Tenant{ID: id})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 4, p.Len())

	// Nothing idle yet; LRU trims to two, oldest first.
	p.evict(time.Now())
	assert.Equal(t, 2, p.Len())
	_, stillA := p.m.Load("a")
	_, stillD := p.m.Load("d")
	assert.False(t, stillA)
	assert.True(t, stillD)

	// Everything idle an hour from now.
	p.evict(time.Now().Add(time.Hour))
	assert.Equal(t, 0, p.Len())
}

func TestPools_CloseIsIdempotent(t *testing.T) {
	p := newPools(&fakeOpener{}, time.Hour, 10, time.Hour, zap.NewNop().Sugar())
	_, err := p.Get(context.Background(), Tenant{})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Len())
}

func TestMiddleware(t *testing.T) {
	o := &fakeOpener{fail: map[string]error{"broken": errors.New("down")}}
	reg, err := NewRegistry(Tenant{ConnectionString: "main"}, map[string]Tenant{
		"acme":   {ConnectionString: "acme"},
		"broken": {ConnectionString: "broken"},
		"odd":    {ConnectionString: "odd", Provider: "oracle"},
	})
	require.NoError(t, err)
	res := NewResolver(reg, "")

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pool := FromContext(r.Context())
		require.NotNil(t, pool)
		seen = pool.Tenant.Name()
		w.WriteHeader(http.StatusOK)
	})

	// The fake opener does not check providers, so wrap it to mimic the
	// factory's behaviour for "odd".
	opener := openerFunc(func(ctx context.Context, t Tenant) (*sqlx.DB, error) {
		if _, err := database.ParseProvider(t.Provider); err != nil {
			return nil, err
		}
		return o.Open(ctx, t)
	})

	tests := []struct {
		name   string
		header string
		strict bool
		code   int
		tenant string
	}{
		{"no header", "", false, http.StatusOK, MainID},
		{"known", "acme", false, http.StatusOK, "acme"},
		{"unknown lenient", "initech", false, http.StatusOK, MainID},
		{"unknown strict", "initech", true, http.StatusNotFound, ""},
		{"open fails", "broken", false, http.StatusServiceUnavailable, ""},
		{"bad provider", "odd", false, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools := newPools(opener, time.Hour, 10, time.Hour, zap.NewNop().Sugar())
			defer pools.Close()
			seen = ""

			req := httptest.NewRequest(http.MethodGet, "/weatherforecast", nil)
			if tt.header != "" {
				req.Header.Set(DefaultHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			Middleware(res, pools, tt.strict)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			assert.Equal(t, tt.tenant, seen)
		})
	}
}

type openerFunc func(ctx context.Context, t Tenant) (*sqlx.DB, error)

func (f openerFunc) Open(ctx context.Context, t Tenant) (*sqlx.DB, error) { return f(ctx, t) }

func TestPools_GetAfterClose(t *testing.T) {
	o := &fakeOpener{}
	p := newPools(o, time.Hour, 10, time.Hour, zap.NewNop().Sugar())
	require.NoError(t, p.Close())

	_, err := p.Get(context.Background(), Tenant{ID: "acme"})
	assert.ErrorIs(t, err, ErrPoolsClosed)
	assert.Equal(t, int32(0), o.opens.Load())
	assert.Equal(t, 0, p.Len())
}

func TestPools_CloseDuringOpen(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	var mock sqlmock.Sqlmock
	o := openerFunc(func(context.Context, Tenant) (*sqlx.DB, error) {
		close(started)
		<-release
		db, m, err := sqlmock.New()
		if err != nil {
			return nil, err
		}
		m.ExpectClose()
		mock = m
		return sqlx.NewDb(db, "sqlmock"), nil
	})
	p := newPools(o, time.Hour, 10, time.Hour, zap.NewNop().Sugar())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Get(context.Background(), Tenant{ID: "acme"})
		errCh <- err
	}()
	<-started
	require.NoError(t, p.Close())
	close(release)

	assert.ErrorIs(t, <-errCh, ErrPoolsClosed)
	assert.Equal(t, 0, p.Len())
	assert.NoError(t, mock.ExpectationsWereMet(), "the late pool is closed, not leaked")
}

func TestPools_OpenHook(t *testing.T) {
	var calls atomic.Int32
	hook := func(_ context.Context, pool *Pool) error {
		calls.Add(1)
		if pool.Tenant.ID == "broken" {
			return errors.New("schema failed")
		}
		return nil
	}
	o := &fakeOpener{}
	p := newPools(o, time.Hour, 10, time.Hour, zap.NewNop().Sugar(), WithOpenHook(hook))
	defer p.Close()

	ctx := context.Background()
	_, err := p.Get(ctx, Tenant{ID: "acme"})
	require.NoError(t, err)
	_, err = p.Get(ctx, Tenant{ID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "hook runs once per opened pool")

	_, err = p.Get(ctx, Tenant{ID: "broken"})
	assert.ErrorContains(t, err, "schema failed")
	assert.Equal(t, 1, p.Len(), "a pool whose hook failed is not cached")
}

func TestPools_MemoryPoolsAreNotEvicted(t *testing.T) {
	p := newPools(&fakeOpener{}, time.Minute, 1, time.Hour, zap.NewNop().Sugar())
	defer p.Close()

	ctx := context.Background()
	_, err := p.Get(ctx, Tenant{ID: "sandbox", Provider: "memory"})
	require.NoError(t, err)
	_, err = p.Get(ctx, Tenant{ID: "sandbox2", Provider: "memory"})
	require.NoError(t, err)
	_, err = p.Get(ctx, Tenant{ID: "acme"})
	require.NoError(t, err)

	p.evict(time.Now().Add(time.Hour))
	assert.Equal(t, 2, p.Len())
	_, ok := p.m.Load("acme")
	assert.False(t, ok)
}
