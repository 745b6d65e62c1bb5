// evictor.go houses the eviction loop for Pools.  Every EvictInterval it
// scans the map and closes:
//
//   - pools idle longer than idleTTL
//   - least-recently-used pools when map size exceeds maxEntries
//
// Memory-provider pools are skipped by both passes.
//
// Each eviction event is logged and updates Prometheus counters.
package tenant

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/metrics"
)

func (p *Pools) evictLoop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.evictTicker.C:
			p.evict(time.Now())
		}
	}
}

func (p *Pools) evict(at time.Time) {
	now := at.UnixNano()
	var count int

	// ----------------------------------------------------------------
	// Idle eviction pass
	// ----------------------------------------------------------------
	p.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		if ent.pool.Provider == database.Memory {
			return true
		}
		idle := time.Duration(now - atomic.LoadInt64(&ent.lastSeen))
		if p.idleTTL > 0 && idle > p.idleTTL {
			p.drop(key.(string), ent)
			p.log.Infow("tenant pool evicted", "tenant", key, "idle", idle.Truncate(time.Second))
			metrics.TenantEvictTotal.Inc()
			return true
		}
		count++
		return true
	})

	// ----------------------------------------------------------------
	// LRU eviction pass
	// ----------------------------------------------------------------
	if p.maxEntries <= 0 || count <= p.maxEntries {
		return
	}
	type kv struct {
		key string
		ent *entry
		at  int64
	}
	var all []kv
	p.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		if ent.pool.Provider == database.Memory {
			return true
		}
		all = append(all, kv{key: key.(string), ent: ent, at: atomic.LoadInt64(&ent.lastSeen)})
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
	for i := 0; i < len(all)-p.maxEntries; i++ {
		p.drop(all[i].key, all[i].ent)
		p.log.Infow("tenant pool evicted (LRU pressure)", "tenant", all[i].key)
		metrics.TenantEvictTotal.Inc()
	}
}
