package xmltree

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default sizing for the lookup cache. A few hundred distinct xpaths cover
// even large Panorama configurations; entries expire so that long-lived
// engines do not pin stale subtrees.
const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// lookupCache memoizes FindMany results keyed by (xpath, root identity).
// Dynamic xpaths (unexpanded format placeholders) bypass the cache.
type lookupCache struct {
	lru *expirable.LRU[string, []*etree.Element]
}

func newLookupCache(size int, ttl time.Duration) *lookupCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &lookupCache{lru: expirable.NewLRU[string, []*etree.Element](size, nil, ttl)}
}

// key builds the cache key from the xpath and the identity of the root the
// query ran against. Keying on root identity keeps one cache safe across
// multiple trees.
func (c *lookupCache) key(xpath string, root *etree.Element) string {
	return fmt.Sprintf("%p|%s", root, xpath)
}

// cacheable reports whether the xpath is static. Paths still containing
// format placeholders are per-call and not worth caching.
func cacheable(xpath string) bool {
	return !strings.Contains(xpath, "%s") && !strings.Contains(xpath, "{")
}

func (c *lookupCache) get(xpath string, root *etree.Element) ([]*etree.Element, bool) {
	if !cacheable(xpath) {
		return nil, false
	}
	return c.lru.Get(c.key(xpath, root))
}

func (c *lookupCache) put(xpath string, root *etree.Element, result []*etree.Element) {
	if !cacheable(xpath) {
		return
	}
	c.lru.Add(c.key(xpath, root), result)
}

// invalidate drops every entry for the given root. The LRU has no prefix
// scan, so this walks the key set; with the default capacity that is cheap
// relative to any tree mutation.
func (c *lookupCache) invalidate(root *etree.Element) {
	prefix := fmt.Sprintf("%p|", root)
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// purge drops everything.
func (c *lookupCache) purge() {
	c.lru.Purge()
}
