package updatecheck

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/obfx/themecheck/internal/store"
)

// CacheKey is the store entry holding the fingerprint to report mapping.
const CacheKey = "checks"

// Cache is a typed view over the "checks" entry of a store. Entries never
// expire and are never evicted.
type Cache struct {
	store store.Store
}

func NewCache(s store.Store) *Cache {
	return &Cache{store: s}
}

// Lookup returns the cached report for fp. Entries without a status code
// count as absent.
func (c *Cache) Lookup(ctx context.Context, fp Fingerprint) (*ImpactReport, bool, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, false, err
	}
	r, ok := all[fp]
	if !ok || r == nil || r.StatusCode == "" {
		return nil, false, nil
	}
	return r, true, nil
}

// Put merges r into the mapping under fp. A corrupt mapping is replaced.
func (c *Cache) Put(ctx context.Context, fp Fingerprint, r *ImpactReport) error {
	return c.store.Update(ctx, CacheKey, func(cur []byte, found bool) ([]byte, error) {
		checks := make(map[Fingerprint]*ImpactReport)
		if found && len(cur) > 0 {
			if err := json.Unmarshal(cur, &checks); err != nil {
				log.Warn("check cache is corrupt, starting over", "error", err)
				checks = make(map[Fingerprint]*ImpactReport)
			}
		}
		checks[fp] = r
		return json.Marshal(checks)
	})
}

// All returns every cached report.
func (c *Cache) All(ctx context.Context) (map[Fingerprint]*ImpactReport, error) {
	raw, found, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		return nil, fmt.Errorf("read check cache: %w", err)
	}
	checks := make(map[Fingerprint]*ImpactReport)
	if !found || len(raw) == 0 {
		return checks, nil
	}
	if err := json.Unmarshal(raw, &checks); err != nil {
		return nil, fmt.Errorf("decode check cache: %w", err)
	}
	return checks, nil
}
