package stream

import (
	"sync"
)

// globalStreamCap bounds live SSE connections across all clients so a
// crowd of distinct IPs cannot exhaust the server.
const globalStreamCap = 1000

// streamLimiter admits SSE connections subject to a per-IP cap and a
// global cap. Counts are decremented on release; an IP with no live
// connections is dropped from the map.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	active   int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: globalStreamCap,
	}
}

// acquire admits a connection for ip, returning false when either the
// global or the per-IP cap is already met.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active >= l.maxTotal || l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	l.active++
	return true
}

// release returns the slot held by ip.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active--
	l.perIP[ip]--
	if l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// count reports the live connections held by ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
