package auth

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// SnapshotCache is the narrow cache contract the resolver and the password
// reset path depend on. Entries are whole snapshots, overwrite-wins.
type SnapshotCache interface {
	Get(email string) (Snapshot, bool)
	Set(email string, snapshot Snapshot)
	Del(email string)
}

// IdentityCache holds recently resolved identity snapshots with a bounded
// TTL so most resolutions skip the database.
type IdentityCache struct {
	cache *ristretto.Cache[string, Snapshot]
	ttl   time.Duration
}

func NewIdentityCache(ttl time.Duration) (*IdentityCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, Snapshot]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init identity cache: %w", err)
	}
	return &IdentityCache{cache: cache, ttl: ttl}, nil
}

func cacheKey(email string) string {
	return "user:" + email
}

func (c *IdentityCache) Get(email string) (Snapshot, bool) {
	return c.cache.Get(cacheKey(email))
}

// Set stores the snapshot and waits for the buffered write to land, so a
// resolution that just populated the cache is immediately served from it.
func (c *IdentityCache) Set(email string, snapshot Snapshot) {
	c.cache.SetWithTTL(cacheKey(email), snapshot, 1, c.ttl)
	c.cache.Wait()
}

// Del removes the entry before returning. Password reset relies on this:
// the eviction must be observable to any resolution that starts after the
// reset call returns.
func (c *IdentityCache) Del(email string) {
	c.cache.Del(cacheKey(email))
	c.cache.Wait()
}

func (c *IdentityCache) Close() {
	c.cache.Close()
}
