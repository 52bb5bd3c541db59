package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool maintains a token-bucket rate limiter per client address.
type limiterPool struct {
	rps   float64
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{
		rps:   rps,
		burst: burst,
		m:     make(map[string]*rate.Limiter),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether the client identified by key may issue another
// request now.
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// clientKey identifies the client that issued r by its remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
