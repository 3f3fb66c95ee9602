package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/brocc/internal/taxon"
)

// DefaultCacheSize is the per-table capacity used when none is configured.
const DefaultCacheSize = 10000

// Cache memoizes a Source. Unknown accessions and taxa are remembered too,
// so repeated misses cost one lookup. Concurrent lookups of the same key
// share one call to the underlying source.
type Cache struct {
	source   Source
	taxonIDs *lru[string]
	lineages *lru[[]taxon.Entry]
	group    singleflight.Group
}

// NewCache wraps source with two LRU tables of the given capacity each.
func NewCache(source Source, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		source:   source,
		taxonIDs: newLRU[string](capacity),
		lineages: newLRU[[]taxon.Entry](capacity),
	}
}

// TaxonID returns the cached taxon id of accession, querying the source on a miss.
func (c *Cache) TaxonID(ctx context.Context, accession string) (string, error) {
	if id, ok := c.taxonIDs.get(accession); ok {
		if id == "" {
			return "", fmt.Errorf("accession %s: %w", accession, ErrNotFound)
		}
		return id, nil
	}
	v, err := c.do(ctx, "acc:"+accession, func(ctx context.Context) (any, error) {
		id, err := c.source.TaxonID(ctx, accession)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", err
		}
		c.taxonIDs.set(accession, id)
		return id, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Lineage returns the cached lineage of taxonID, querying the source on a miss.
func (c *Cache) Lineage(ctx context.Context, taxonID string) ([]taxon.Entry, error) {
	if entries, ok := c.lineages.get(taxonID); ok {
		if len(entries) == 0 {
			return nil, fmt.Errorf("taxon %s: %w", taxonID, ErrNotFound)
		}
		return entries, nil
	}
	v, err := c.do(ctx, "tax:"+taxonID, func(ctx context.Context) (any, error) {
		entries, err := c.source.Lineage(ctx, taxonID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err != nil {
			entries = nil
		}
		c.lineages.set(taxonID, entries)
		return entries, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]taxon.Entry), nil
}

// do shares one call of fn among concurrent callers of key. The call runs
// detached from any single caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (c *Cache) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Source returns the wrapped source.
func (c *Cache) Source() Source { return c.source }

// Len returns the number of cached accessions and lineages.
func (c *Cache) Len() int {
	return c.taxonIDs.len() + c.lineages.len()
}

type cacheFile struct {
	TaxonIDs map[string]string        `json:"taxon_ids"`
	Lineages map[string][]taxon.Entry `json:"lineages"`
}

// Save writes the cached entries to path as JSON.
func (c *Cache) Save(path string) error {
	f := cacheFile{
		TaxonIDs: make(map[string]string),
		Lineages: make(map[string][]taxon.Entry),
	}
	for _, e := range c.taxonIDs.snapshot() {
		f.TaxonIDs[e.key] = e.value
	}
	for _, e := range c.lineages.snapshot() {
		f.Lineages[e.key] = e.value
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Load merges entries saved by Save. A missing file is not an error.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse cache: %w", err)
	}
	for acc, id := range f.TaxonIDs {
		c.taxonIDs.set(acc, id)
	}
	for id, entries := range f.Lineages {
		c.lineages.set(id, entries)
	}
	return nil
}
