// Package dedupe suppresses repeat previews of the same media within a
// sliding time window.
package dedupe

import (
	"sync"
	"time"
)

// DefaultWindow is used when a cache is created or reconfigured with a
// non-positive window.
const DefaultWindow = 30 * time.Minute

// Cache is a time-windowed key set. A key marked at time T suppresses every
// later hit until T+window; hits do not extend the window. Expired entries
// are swept by a background goroutine at half the window interval.
type Cache struct {
	mu     sync.Mutex
	seen   map[string]int64 // key -> mark timestamp, unix millis
	window time.Duration

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewCache creates a cache and starts its sweep goroutine. Callers must
// Close the cache when done with it.
func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Cache{
		seen:   make(map[string]int64),
		window: window,
		done:   make(chan struct{}),
	}
	c.ticker = time.NewTicker(window / 2)
	go c.run()
	return c
}

func (c *Cache) run() {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			c.sweep(time.Now())
		}
	}
}

// CheckAndMark reports whether any of the keys was marked within the window.
// If one was, nothing is marked. If none was, all keys are marked at now and
// the call returns false. The check and the marks are one atomic step, so
// concurrent posts of the same media race to a single winner.
func (c *Cache) CheckAndMark(keys []string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := now.UnixMilli()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if ts, ok := c.seen[key]; ok && nowMs-ts < c.window.Milliseconds() {
			return true
		}
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		c.seen[key] = nowMs
	}
	return false
}

// Mark records keys without checking them. Used for the alias keys a target
// gains after resolution, so later posts of any form hit the cache.
func (c *Cache) Mark(keys []string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := now.UnixMilli()
	for _, key := range keys {
		if key == "" {
			continue
		}
		c.seen[key] = nowMs
	}
}

// SetWindow changes the suppression window, keeping existing marks. Entries
// marked under the old window expire under the new one.
func (c *Cache) SetWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultWindow
	}
	c.mu.Lock()
	c.window = window
	c.mu.Unlock()
	c.ticker.Reset(window / 2)
}

// Size returns the number of entries currently held, expired or not.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// sweep drops entries older than the window.
func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.UnixMilli() - c.window.Milliseconds()
	for key, ts := range c.seen {
		if ts <= cutoff {
			delete(c.seen, key)
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}

// SeenSet tracks keys within a single message batch so one message naming
// the same media twice, in different forms, produces one preview. It is not
// safe for concurrent use; each batch gets its own set.
type SeenSet struct {
	keys map[string]struct{}
}

// NewSeenSet creates an empty batch-scoped set.
func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// CheckAndAdd reports whether key was already added, adding it if not.
// Empty keys are never tracked.
func (s *SeenSet) CheckAndAdd(key string) bool {
	if key == "" {
		return false
	}
	if _, dup := s.keys[key]; dup {
		return true
	}
	s.keys[key] = struct{}{}
	return false
}
