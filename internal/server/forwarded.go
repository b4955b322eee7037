package server

import (
	"net/http"
	"strings"
)

// forwardedHost extracts the original host from a fronting proxy's
// X-Forwarded-Host header, with any port stripped. Returns "" when the
// header is absent so the resolver falls through to its next host source.
func forwardedHost(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("X-Forwarded-Host"))
	if raw == "" {
		return ""
	}
	// Proxies may send a comma-separated chain; the first entry is the
	// client-facing host.
	if idx := strings.IndexByte(raw, ','); idx != -1 {
		raw = strings.TrimSpace(raw[:idx])
	}
	return stripPort(raw)
}

// stripPort removes a trailing :port, keeping bracketed IPv6 literals intact.
func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if idx := strings.IndexByte(host, ']'); idx != -1 {
			return host[1:idx]
		}
		return host
	}
	if idx := strings.LastIndexByte(host, ':'); idx != -1 {
		// A second colon means an unbracketed IPv6 literal with no port.
		if strings.IndexByte(host, ':') == idx {
			return host[:idx]
		}
	}
	return host
}
