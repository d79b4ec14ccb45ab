package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ClientIDHeader identifies a caller independent of its address.
const ClientIDHeader = "X-Client-ID"

// ClientKey identifies the caller of r by ClientIDHeader, falling back to
// the remote IP.
func ClientKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ClientIDHeader)); id != "" {
		return "client:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware rejects requests over the limit with 429. onLimited, if set,
// is called for every rejected request.
func Middleware(l *Limiter, onLimited func(r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(r.Context(), ClientKey(r))
			if d.Limit > 0 {
				for k, v := range d.Headers() {
					w.Header().Set(k, v)
				}
			}
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if onLimited != nil {
				onLimited(r)
			}
			retry := max(int(time.Until(d.ResetAt).Seconds()+0.5), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
		})
	}
}
