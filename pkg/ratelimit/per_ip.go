package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Default per-IP limiter values.
const (
	DefaultCleanupInterval = 1 * time.Minute
	DefaultEntryTTL        = 1 * time.Minute
)

// PerIPConfig configures a PerIPLimiter.
type PerIPConfig struct {
	Rate            float64       // tokens per second
	Burst           int           // maximum bucket capacity
	TrustedProxies  []string      // CIDR ranges or addresses of trusted proxies
	CleanupInterval time.Duration // how often stale entries are removed
	EntryTTL        time.Duration // how long an idle entry is kept
}

// PerIPLimiter keeps one token bucket per client IP.
type PerIPLimiter struct {
	rate    float64
	burst   int
	proxies []*net.IPNet
	ttl     time.Duration

	mu      sync.Mutex
	buckets map[string]*Bucket

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPerIPLimiter creates a per-IP rate limiter and starts its cleanup
// goroutine. Call Stop when done.
func NewPerIPLimiter(cfg PerIPConfig) *PerIPLimiter {
	rate := cfg.Rate
	if rate <= 0 {
		rate = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(rate * 2))
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}

	rl := &PerIPLimiter{
		rate:    rate,
		burst:   burst,
		proxies: ParseTrustedProxies(cfg.TrustedProxies),
		ttl:     ttl,
		buckets: make(map[string]*Bucket),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go rl.cleanupLoop(interval)
	return rl
}

// ParseTrustedProxies parses CIDR ranges and bare addresses. Entries that
// parse as neither are ignored.
func ParseTrustedProxies(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			continue
		}
		bits := 128
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Burst returns the bucket capacity.
func (rl *PerIPLimiter) Burst() int {
	return rl.burst
}

// Allow consumes a token for ip. It returns whether the request may go
// ahead, the whole tokens left, and the seconds until the bucket is full
// (when allowed) or until the next token (when refused).
func (rl *PerIPLimiter) Allow(ip string) (allowed bool, remaining int, resetSec int64) {
	return rl.allowAt(ip, time.Now())
}

func (rl *PerIPLimiter) allowAt(ip string, now time.Time) (bool, int, int64) {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = NewBucket(rl.rate, rl.burst)
		b.lastUpdate = now
		rl.buckets[ip] = b
	}
	rl.mu.Unlock()

	taken, left, wait := b.take(now)
	if !taken {
		return false, 0, ceilSeconds(wait.Seconds())
	}
	return true, int(left), ceilSeconds((float64(rl.burst) - left) / rl.rate)
}

func ceilSeconds(s float64) int64 {
	if s <= 0 {
		return 0
	}
	return int64(math.Ceil(s))
}

// ClientIP returns the client address of r. Forwarding headers are only
// honoured when the direct peer is a trusted proxy.
func (rl *PerIPLimiter) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !rl.trusted(remote) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	return remote
}

func (rl *PerIPLimiter) trusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range rl.proxies {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Len returns the number of tracked clients.
func (rl *PerIPLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *PerIPLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	<-rl.doneCh
}

func (rl *PerIPLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(rl.doneCh)

	for {
		select {
		case now := <-ticker.C:
			rl.removeStale(now)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PerIPLimiter) removeStale(now time.Time) {
	cutoff := now.Add(-rl.ttl)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.lastSeen().Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}
