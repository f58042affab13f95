package usecase

import (
	"container/list"
	"sync"

	"github.com/user/pagestate-service/internal/entity"
)

// DefaultElementCacheLimit bounds the number of URLs an ElementCache keeps.
const DefaultElementCacheLimit = 100

// ElementCache keeps one ElementCacheEntry per URL and evicts in write
// order: the entry written longest ago goes first. Reads never reorder, so
// this is deliberately not an LRU.
type ElementCache struct {
	mu    sync.Mutex
	limit int
	index map[string]*list.Element // url -> node in order
	order *list.List               // front = oldest write
}

func NewElementCache(limit int) *ElementCache {
	if limit <= 0 {
		limit = DefaultElementCacheLimit
	}
	return &ElementCache{
		limit: limit,
		index: make(map[string]*list.Element, limit),
		order: list.New(),
	}
}

// Put replaces the entry for entry.URL and moves it to the young end. When
// the cache is over its limit the oldest entry is evicted and its URL
// returned.
func (c *ElementCache) Put(entry *entity.ElementCacheEntry) (evicted string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.index[entry.URL]; ok {
		node.Value = entry
		c.order.MoveToBack(node)
		return ""
	}

	c.index[entry.URL] = c.order.PushBack(entry)
	if c.order.Len() <= c.limit {
		return ""
	}

	oldest := c.order.Front()
	old := oldest.Value.(*entity.ElementCacheEntry)
	c.order.Remove(oldest)
	delete(c.index, old.URL)
	return old.URL
}

// Get returns the entry for url without affecting eviction order.
func (c *ElementCache) Get(url string) (*entity.ElementCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.index[url]
	if !ok {
		return nil, false
	}
	return node.Value.(*entity.ElementCacheEntry), true
}

func (c *ElementCache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.index[url]; ok {
		c.order.Remove(node)
		delete(c.index, url)
	}
}

func (c *ElementCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// URLs lists cached URLs from oldest to newest write.
func (c *ElementCache) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	urls := make([]string, 0, c.order.Len())
	for n := c.order.Front(); n != nil; n = n.Next() {
		urls = append(urls, n.Value.(*entity.ElementCacheEntry).URL)
	}
	return urls
}
