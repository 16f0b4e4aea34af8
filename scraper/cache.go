package scraper

import (
	"context"
	"strings"
	"sync"

	"github.com/golang/groupcache/singleflight"
)

// Cache remembers the results of another Scraper. Concurrent requests for
// the same path and options share one call. Results are shared between
// callers and must not be modified.
type Cache struct {
	Scraper Scraper

	group   singleflight.Group
	m       sync.Mutex // protects results
	results map[string]*Result
}

// NewCache returns a cache in front of s.
func NewCache(s Scraper) *Cache {
	return &Cache{Scraper: s, results: make(map[string]*Result)}
}

func cacheKey(path string, opts Options) string {
	return strings.Join([]string{path, opts.MIMEType, opts.Version, opts.Charset,
		opts.Delimiter, opts.Separator, opts.QuoteChar}, "\x00")
}

// Scrape implements Scraper.
func (c *Cache) Scrape(ctx context.Context, path string, opts Options) (*Result, error) {
	key := cacheKey(path, opts)
	c.m.Lock()
	r, ok := c.results[key]
	c.m.Unlock()
	if ok {
		return r, nil
	}
	v, err := c.group.Do(key, func() (interface{}, error) {
		c.m.Lock()
		r, ok := c.results[key]
		c.m.Unlock()
		if ok {
			return r, nil
		}
		r, err := c.Scraper.Scrape(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		c.m.Lock()
		if c.results == nil {
			c.results = make(map[string]*Result)
		}
		c.results[key] = r
		c.m.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Put stores r as the result for path scraped with no options. It is
// used to seed the cache from saved results.
func (c *Cache) Put(path string, r *Result) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.results == nil {
		c.results = make(map[string]*Result)
	}
	c.results[cacheKey(path, Options{})] = r
}

// Forget drops every result for path.
func (c *Cache) Forget(path string) {
	prefix := path + "\x00"
	c.m.Lock()
	defer c.m.Unlock()
	for k := range c.results {
		if strings.HasPrefix(k, prefix) {
			delete(c.results, k)
		}
	}
}
