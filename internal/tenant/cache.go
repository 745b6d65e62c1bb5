package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/metrics"
)

// Static defaults.  Override through database.pool in global.yaml.
const (
	IdleTTL       = 30 * time.Minute
	MaxEntries    = 100
	EvictInterval = 5 * time.Minute
)

// ErrPoolsClosed is returned by Get after Close.
var ErrPoolsClosed = errors.New("tenant pools closed")

// OpenHook prepares a freshly opened pool before it is cached.  A hook
// error closes the pool and fails the Get.
type OpenHook func(ctx context.Context, p *Pool) error

// PoolsOption customises NewPools.
type PoolsOption func(*Pools)

// WithOpenHook installs h for every pool Pools opens.
func WithOpenHook(h OpenHook) PoolsOption {
	return func(p *Pools) { p.onOpen = h }
}

// Pool is a cached, open connection pool for one tenant.
type Pool struct {
	Tenant   Tenant
	Provider database.Provider
	DB       *sqlx.DB
}

type entry struct {
	pool     *Pool
	lastSeen int64 // UnixNano
}

// Pools lazily opens one pool per tenant, stores it in a sync.Map, and
// evicts it on idle TTL or LRU pressure.  Memory-provider pools are never
// evicted; closing their last connection discards the data.
type Pools struct {
	opener      Opener
	sfg         singleflight.Group
	m           sync.Map
	evictTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
	closed      atomic.Bool
	onOpen      OpenHook
	idleTTL     time.Duration
	maxEntries  int
	log         *zap.SugaredLogger
}

// NewPools constructs a Pools cache and starts the background evictor.
func NewPools(o Opener, idleTTL time.Duration, maxEntries int, log *zap.SugaredLogger, opts ...PoolsOption) *Pools {
	return newPools(o, idleTTL, maxEntries, EvictInterval, log, opts...)
}

func newPools(o Opener, idleTTL time.Duration, maxEntries int, every time.Duration, log *zap.SugaredLogger, opts ...PoolsOption) *Pools {
	if log == nil {
		log = zap.S()
	}
	p := &Pools{
		opener:     o,
		idleTTL:    idleTTL,
		maxEntries: maxEntries,
		done:       make(chan struct{}),
		log:        log,
	}
	for _, o := range opts {
		o(p)
	}
	p.evictTicker = time.NewTicker(every)
	go p.evictLoop()
	return p
}

// Get returns the pool for t, opening it on demand.  Concurrent callers
// for the same tenant share one open attempt.
func (p *Pools) Get(ctx context.Context, t Tenant) (*Pool, error) {
	if p.closed.Load() {
		return nil, ErrPoolsClosed
	}
	key := t.Name()
	if v, ok := p.m.Load(key); ok {
		ent := v.(*entry)
		atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
		return ent.pool, nil
	}

	v, err, _ := p.sfg.Do(key, func() (interface{}, error) {
		// Double-check after singleflight barrier.
		if v, ok := p.m.Load(key); ok {
			ent := v.(*entry)
			atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
			return ent.pool, nil
		}
		if p.closed.Load() {
			return nil, ErrPoolsClosed
		}

		// The open is shared, so one caller's cancellation must not fail
		// the others.
		octx := context.WithoutCancel(ctx)
		db, err := p.opener.Open(octx, t)
		if err != nil {
			metrics.TenantPoolErrorsTotal.Inc()
			p.log.Errorw("tenant pool open failed", "tenant", key, "err", err)
			return nil, err
		}
		prov, _ := database.ParseProvider(t.Provider)
		pool := &Pool{Tenant: t, Provider: prov, DB: db}

		if p.onOpen != nil {
			if err := p.onOpen(octx, pool); err != nil {
				_ = db.Close()
				metrics.TenantPoolErrorsTotal.Inc()
				p.log.Errorw("tenant pool prepare failed", "tenant", key, "err", err)
				return nil, fmt.Errorf("prepare tenant %s: %w", key, err)
			}
		}

		ent := &entry{pool: pool, lastSeen: time.Now().UnixNano()}
		p.m.Store(key, ent)
		metrics.TenantPoolOpenTotal.Inc()
		metrics.ActiveTenantPools.Inc()

		// Close may have swept the map between the check above and Store.
		if p.closed.Load() {
			p.drop(key, ent)
			return nil, ErrPoolsClosed
		}
		p.log.Infow("tenant pool opened", "tenant", key, "provider", prov)
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pool), nil
}

// Len reports how many pools are open.
func (p *Pools) Len() int {
	n := 0
	p.m.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Close stops the evictor and closes every pool.  Safe to call twice.
func (p *Pools) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.evictTicker.Stop()
		close(p.done)
		p.m.Range(func(key, value any) bool {
			p.drop(key.(string), value.(*entry))
			return true
		})
	})
	return nil
}

func (p *Pools) drop(key string, ent *entry) {
	if !p.m.CompareAndDelete(key, ent) {
		return
	}
	if err := ent.pool.DB.Close(); err != nil {
		p.log.Warnw("tenant pool close", "tenant", key, "err", err)
	}
	metrics.ActiveTenantPools.Dec()
}
