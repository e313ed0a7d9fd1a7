package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces outbound requests per host (search engine, linked pages)
type HostLimiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewHostLimiter creates a per-host token bucket limiter
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 5
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	return &HostLimiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL's host may be sent, then sleeps
// extraDelay (a robots.txt crawl delay, for instance)
func (l *HostLimiter) Wait(ctx context.Context, rawURL string, extraDelay time.Duration) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	if err := l.limiter(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", host, err)
	}

	if extraDelay > 0 {
		return sleepContext(ctx, extraDelay)
	}
	return nil
}

// Allow reports whether a request may be sent now, consuming a token if so
func (l *HostLimiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.limiter(host).Allow()
}

// SetHostRate overrides the rate for one host
func (l *HostLimiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.limiters[strings.ToLower(host)] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter
	return limiter
}

// hostOf returns the lower-cased host name of a URL, without port
func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	return strings.ToLower(parsed.Hostname()), nil
}
