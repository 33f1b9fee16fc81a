package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientIdleTimeout is how long a client's bucket is kept after its last request.
const clientIdleTimeout = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// headerForwardedFor lists the addresses a request passed through, nearest proxy last.
const headerForwardedFor = "X-Forwarded-For"

// RateLimiter is a token bucket per client address.
type RateLimiter struct {
	mut sync.Mutex

	limit rate.Limit
	burst int

	// trusted are the proxies whose X-Forwarded-For header is believed.
	trusted []*net.IPNet

	clients   map[string]*clientBucket
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter allows each client rps requests per second with a burst of the same size.
func NewRateLimiter(rps float64) *RateLimiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// Allow reports whether the client may make a request now.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mut.Lock()
	defer rl.mut.Unlock()

	now := rl.now()
	rl.prune(now)

	b, ok := rl.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastPrune) < time.Minute {
		return
	}
	rl.lastPrune = now
	for k, b := range rl.clients {
		if now.Sub(b.lastSeen) > clientIdleTimeout {
			delete(rl.clients, k)
		}
	}
}

// ParseTrustedProxies parses CIDR ranges or single addresses.
func ParseTrustedProxies(values []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				return nil, fmt.Errorf("invalid proxy address %q", v)
			}
			if ip.To4() != nil {
				v += "/32"
			} else {
				v += "/128"
			}
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy range %q: %w", v, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func (rl *RateLimiter) isTrusted(ip net.IP) bool {
	for _, n := range rl.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientKey identifies the caller of a request. The X-Forwarded-For header is only read when the peer is a
// trusted proxy, and then the nearest address that is not a trusted proxy is the client.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer := net.ParseIP(host)
	if peer == nil || !rl.isTrusted(peer) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values(headerForwardedFor), ","), ",")
	client := host
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		ip := net.ParseIP(hop)
		if ip == nil {
			return client
		}
		client = ip.String()
		if !rl.isTrusted(ip) {
			return client
		}
	}
	return client
}
