// Package rate provides a fixed-window, in-process request limiter keyed by
// route and client address.
package rate

import (
	"sync"
	"time"
)

type window struct {
	hits  int
	start time.Time
	size  time.Duration
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
	swept   time.Time
	now     func() time.Time
}

func NewLimiter() *Limiter {
	l := &Limiter{windows: map[string]window{}, now: func() time.Time { return time.Now().UTC() }}
	l.swept = l.now()
	return l
}

// Allow records a hit for key. When the key is over limit it reports false
// and how long until its window reopens.
func (l *Limiter) Allow(key string, limit int, size time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.swept) > time.Minute {
		l.sweep(now)
	}
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= w.size {
		l.windows[key] = window{hits: 1, start: now, size: size}
		return true, 0
	}
	if w.hits >= limit {
		return false, w.start.Add(w.size).Sub(now)
	}
	w.hits++
	l.windows[key] = w
	return true, 0
}

func (l *Limiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) > 3*w.size {
			delete(l.windows, k)
		}
	}
	l.swept = now
}
