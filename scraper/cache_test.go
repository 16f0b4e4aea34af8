package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingScraper struct {
	calls int64
	err   error
}

func (c *countingScraper) Scrape(ctx context.Context, path string, opts Options) (*Result, error) {
	atomic.AddInt64(&c.calls, 1)
	time.Sleep(10 * time.Millisecond)
	if c.err != nil {
		return nil, c.err
	}
	return &Result{MIMEType: opts.MIMEType, Streams: []Stream{{"index": "0"}}}, nil
}

func TestCacheSharesCalls(t *testing.T) {
	inner := &countingScraper{}
	c := NewCache(inner)
	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.Scrape(context.Background(), "/a", Options{MIMEType: "text/plain"})
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&inner.calls))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	// different options are a different entry
	_, err := c.Scrape(context.Background(), "/a", Options{MIMEType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&inner.calls))

	c.Forget("/a")
	_, err = c.Scrape(context.Background(), "/a", Options{MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&inner.calls))
}

func TestCacheErrorsNotKept(t *testing.T) {
	inner := &countingScraper{err: errors.New("boom")}
	c := NewCache(inner)
	_, err := c.Scrape(context.Background(), "/a", Options{})
	assert.EqualError(t, err, "boom")
	_, err = c.Scrape(context.Background(), "/a", Options{})
	assert.Error(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&inner.calls))
}

func TestCachePut(t *testing.T) {
	inner := &countingScraper{}
	c := NewCache(inner)
	seeded := &Result{MIMEType: "image/png"}
	c.Put("/b", seeded)
	r, err := c.Scrape(context.Background(), "/b", Options{})
	require.NoError(t, err)
	assert.Same(t, seeded, r)
	assert.Equal(t, int64(0), atomic.LoadInt64(&inner.calls))
}
