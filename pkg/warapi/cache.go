package warapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

type entry struct {
	war       War
	fetchedAt time.Time
}

// Cache keeps the last fetched war for a fixed TTL. When a refresh fails the
// last good value is served; without one the call fails with ErrUnavailable.
// Concurrent refreshes share a single fetch.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	log     Logger

	mu    sync.Mutex
	entry *entry
	group singleflight.Group
}

func NewCache(f Fetcher, ttl time.Duration, log Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Cache{fetcher: f, ttl: ttl, now: time.Now, log: log}
}

// Current returns the current war.
func (c *Cache) Current(ctx context.Context) (War, error) {
	c.mu.Lock()
	e := c.entry
	c.mu.Unlock()
	if e != nil && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.war, nil
	}

	// The fetch is shared by every waiter, so one caller going away must not
	// cancel it for the others.
	fctx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("war", func() (interface{}, error) {
		w, err := c.fetcher.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entry = &entry{war: *w, fetchedAt: c.now()}
		c.mu.Unlock()
		c.log.Debugf("Fetched war %d", w.WarNumber)
		return *w, nil
	})
	if err == nil {
		return v.(War), nil
	}

	c.mu.Lock()
	e = c.entry
	c.mu.Unlock()
	if e != nil {
		c.log.Warnf("War service failed, serving war %d fetched %s ago: %v", e.war.WarNumber, c.now().Sub(e.fetchedAt).Round(time.Second), err)
		return e.war, nil
	}
	return War{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// CurrentNumber returns the number of the current war.
func (c *Cache) CurrentNumber(ctx context.Context) (int, error) {
	w, err := c.Current(ctx)
	if err != nil {
		return 0, err
	}
	return w.WarNumber, nil
}

// Invalidate drops the cached war so the next call fetches a fresh one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}
