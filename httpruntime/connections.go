package httpruntime

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// ConnectionConfig bounds the connection tracker.
type ConnectionConfig struct {
	Enabled        bool
	MaxConnections int
	MaxPerIP       int
}

// ConnectionTracker enforces MaxConnections and MaxPerIP, decrementing
// counts on connection close.
type ConnectionTracker struct {
	cfg ConnectionConfig

	mu     sync.Mutex
	total  int
	perIP  map[string]int
}

// NewConnectionTracker constructs a tracker enforcing cfg.
func NewConnectionTracker(cfg ConnectionConfig) *ConnectionTracker {
	return &ConnectionTracker{cfg: cfg, perIP: make(map[string]int)}
}

// Acquire records a new connection from ip, returning a release func
// to call on connection close. It fails with a 429-mapped error if
// either the global or per-IP limit would be exceeded.
func (t *ConnectionTracker) Acquire(ip string) (func(), error) {
	if !t.cfg.Enabled {
		return func() {}, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.MaxConnections > 0 && t.total >= t.cfg.MaxConnections {
		return nil, &errorsx.BackpressureError{Kind: errorsx.BackpressureSystemOverloaded, Load: 1.0, Message: "global connection limit reached"}
	}
	if t.cfg.MaxPerIP > 0 && t.perIP[ip] >= t.cfg.MaxPerIP {
		return nil, &errorsx.BackpressureError{Kind: errorsx.BackpressureSystemOverloaded, Load: 1.0, Message: "per-IP connection limit reached"}
	}

	t.total++
	t.perIP[ip]++

	released := false
	release := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if released {
			return
		}
		released = true
		if t.total > 0 {
			t.total--
		}
		if t.perIP[ip] > 0 {
			t.perIP[ip]--
		}
		if t.perIP[ip] == 0 {
			delete(t.perIP, ip)
		}
	}
	return release, nil
}

// Total returns the current total tracked connection count.
func (t *ConnectionTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// clientIP extracts the remote host (without port) from r, preferring
// X-Forwarded-For's first hop when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware wraps next with connection accounting, responding 429 on
// overflow and always releasing the slot when the handler returns.
func (t *ConnectionTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, err := t.Acquire(clientIP(r))
		if err != nil {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		defer release()
		next.ServeHTTP(w, r)
	})
}
