// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/fadechat/fadechat/backend/errors"
	"github.com/fadechat/fadechat/backend/storage"
)

// unknownIdentity is the shared bucket for requests whose network identity
// cannot be determined. All such clients throttle together.
const unknownIdentity = "unknown"

// MemoryThrottle is the in-process fixed-window-of-one limiter used when no
// redis is configured. A GC loop evicts entries idle for several windows so
// the identity map does not grow for the life of the process.
type MemoryThrottle struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	stop   chan struct{}
	now    func() time.Time
}

func NewMemoryThrottle(window time.Duration) *MemoryThrottle {
	t := &MemoryThrottle{
		last:   make(map[string]time.Time),
		window: window,
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	go t.gc()
	return t
}

func (t *MemoryThrottle) Allow(_ context.Context, identity string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[identity]; ok && now.Sub(last) < t.window {
		return false, nil
	}
	t.last[identity] = now
	return true, nil
}

func (t *MemoryThrottle) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.evict()
		}
	}
}

func (t *MemoryThrottle) evict() {
	idle := 10 * t.window
	if idle < time.Minute {
		idle = time.Minute
	}
	t.mu.Lock()
	now := t.now()
	for k, v := range t.last {
		if now.Sub(v) > idle {
			delete(t.last, k)
		}
	}
	t.mu.Unlock()
}

// Stop halts the GC goroutine, for graceful shutdown.
func (t *MemoryThrottle) Stop() {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

// RateLimit rejects a request with 429 before any handler or store work
// when its identity has already been admitted within the current window.
// A throttle backend failure admits the request; abuse protection is not
// worth an outage.
func RateLimit(throttle storage.Throttle, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ClientIdentity(r)

			ok, err := throttle.Allow(r.Context(), identity)
			if err != nil {
				logger.Error().Err(err).Str("identity", identity).Msg("throttle check failed")
				ok = true
			}
			if !ok {
				writeThrottled(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentity derives a best-effort network identity from proxy headers,
// falling back to the socket address and finally the shared unknown bucket.
func ClientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return unknownIdentity
}

func writeThrottled(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error": apperrors.ErrTooFast.Error(),
		"code":  string(apperrors.CodeTooFast),
	})
}
