package usecase

import (
	"sync"
	"time"

	"github.com/user/pagestate-service/internal/entity"
)

// DefaultAnalysisTTL is how long a full analysis of a URL stays valid.
const DefaultAnalysisTTL = 5 * time.Second

type analysisCacheEntry struct {
	data      *entity.AnalysisResult
	timestamp time.Time
}

// analysisCache is a per-URL TTL cache of full analyses.
type analysisCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]analysisCacheEntry
}

func newAnalysisCache(ttl time.Duration) *analysisCache {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	return &analysisCache{ttl: ttl, entries: make(map[string]analysisCacheEntry)}
}

// get returns the cached result while now - timestamp < ttl.
func (c *analysisCache) get(url string, now time.Time) (*entity.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if now.Sub(e.timestamp) >= c.ttl {
		delete(c.entries, url)
		return nil, false
	}
	return e.data, true
}

// put stores data for url and drops every other entry that has expired, so
// URLs that are never revisited do not pile up.
func (c *analysisCache) put(url string, data *entity.AnalysisResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, key)
		}
	}
	c.entries[url] = analysisCacheEntry{data: data, timestamp: now}
}

func (c *analysisCache) invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

func (c *analysisCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]analysisCacheEntry)
}
