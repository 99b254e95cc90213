// Package httputil holds small HTTP request helpers shared by the API and
// stream handlers.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the address a request originated from. With trustProxy
// set, the X-Forwarded-For and X-Real-IP headers take precedence over
// RemoteAddr; leave it off unless a trusted reverse proxy sits in front of
// the server, since clients can forge both headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedClient(r); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedClient reads the proxy headers. X-Forwarded-For may carry a
// comma-separated chain; the leftmost entry is the original client.
func forwardedClient(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}
