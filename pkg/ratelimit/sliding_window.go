package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow limits events per key over a rolling window. State lives in
// process memory; a multi-instance deployment needs a shared counter store
// instead.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewSlidingWindow builds a limiter allowing limit events per window per
// key. If cleanupInterval > 0 a janitor drops keys with no recent hits.
func NewSlidingWindow(limit int, window, cleanupInterval time.Duration) *SlidingWindow {
	l := &SlidingWindow{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		l.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer l.wg.Done()
			for {
				select {
				case <-ticker.C:
					l.cleanup()
				case <-l.stop:
					return
				}
			}
		}()
	}
	return l
}

// Allow records a hit for key and reports whether it fits in the window.
func (l *SlidingWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)
	return true
}

func (l *SlidingWindow) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

func (l *SlidingWindow) Close() {
	close(l.stop)
	l.wg.Wait()
}

func (l *SlidingWindow) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.hits {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.hits, key)
		}
	}
}
