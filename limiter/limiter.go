package limiter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Wait(context.Context) error
	Limit() rate.Limit
}

// Per returns the limit of eventCount events per duration.
func Per(eventCount int, duration time.Duration) rate.Limit {
	return rate.Every(duration / time.Duration(eventCount))
}

// Multi combines limiters; Wait blocks on every one of them, the strictest first.
func Multi(limiters ...RateLimiter) *MultiLimiter {
	byLimit := func(i, j int) bool {
		return limiters[i].Limit() < limiters[j].Limit()
	}
	sort.Slice(limiters, byLimit)
	return &MultiLimiter{limiters: limiters}
}

type MultiLimiter struct {
	limiters []RateLimiter
}

func (l *MultiLimiter) Wait(ctx context.Context) error {
	for _, l := range l.limiters {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *MultiLimiter) Limit() rate.Limit {
	return l.limiters[0].Limit()
}

// ParseConcurrentRate reads a book source's concurrentRate. "N/ms" allows N
// requests per ms milliseconds, a bare "ms" one request per ms milliseconds.
// An empty rate means no limit and returns nil.
func ParseConcurrentRate(s string) (RateLimiter, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return nil, nil
	}
	count, window := 1, s
	if n, w, ok := strings.Cut(s, "/"); ok {
		c, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || c <= 0 {
			return nil, fmt.Errorf("invalid concurrent rate %q", s)
		}
		count, window = c, w
	}
	ms, err := strconv.Atoi(strings.TrimSpace(window))
	if err != nil || ms <= 0 {
		return nil, fmt.Errorf("invalid concurrent rate %q", s)
	}
	return rate.NewLimiter(Per(count, time.Duration(ms)*time.Millisecond), count), nil
}
