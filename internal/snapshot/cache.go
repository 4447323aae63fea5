package snapshot

import "sync"

// Cache memoizes generated snapshots on top of a Store so repeated
// GenerateSnapshot calls for the same profile (every resource write that
// cites it in meta.profile) don't re-walk the differential every time.
// internal/domain/structuredefinition calls Invalidate after any write to
// the backing StructureDefinition so a stale snapshot never serves a
// validation request (spec §4.6 "calls internal/snapshot.Cache.Invalidate(url)").
type Cache struct {
	store *Store

	mu   sync.RWMutex
	gen  map[string]*StructureDefinition
}

// NewCache wraps store with a generated-snapshot memo table.
func NewCache(store *Store) *Cache {
	return &Cache{store: store, gen: make(map[string]*StructureDefinition)}
}

// Get returns the expanded StructureDefinition for url, generating and
// caching it on first use.
func (c *Cache) Get(url string) (*StructureDefinition, error) {
	c.mu.RLock()
	if sd, ok := c.gen[url]; ok {
		c.mu.RUnlock()
		return sd, nil
	}
	c.mu.RUnlock()

	sd, ok := c.store.Get(url)
	if !ok {
		return nil, nil
	}
	expanded, err := GenerateSnapshot(c.store, sd)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.gen[url] = expanded
	c.mu.Unlock()
	return expanded, nil
}

// Invalidate drops url's memoized snapshot, forcing the next Get to
// regenerate it from the (presumably just-updated) differential.
func (c *Cache) Invalidate(url string) {
	c.mu.Lock()
	delete(c.gen, url)
	c.mu.Unlock()
}

// Store returns the underlying Store, so callers that need Register (e.g.
// loading a package's StructureDefinitions) don't need a second handle.
func (c *Cache) Store() *Store { return c.store }
