package pipeline

import (
	"net/http"
	"strings"
)

// hopByHopHeaders are connection-scoped and must not be relayed in
// either direction.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// secretBearingHeaders carry gateway or caller credentials and are
// stripped before the request leaves the gateway. Upstream auth is
// injected separately from the decrypted connector secret.
var secretBearingHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
	"X-Api-Key":     {},
}

// sanitizeRequestHeaders copies inbound headers minus hop-by-hop,
// secret-bearing and Connection-named ones.
func sanitizeRequestHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	dropped := connectionNamed(in)

	for name, values := range in {
		canonical := http.CanonicalHeaderKey(name)
		if _, hop := hopByHopHeaders[canonical]; hop {
			continue
		}
		if _, secret := secretBearingHeaders[canonical]; secret {
			continue
		}
		if _, named := dropped[canonical]; named {
			continue
		}
		if canonical == "Host" || canonical == "Content-Length" {
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	return out
}

// sanitizeResponseHeaders copies upstream response headers minus
// hop-by-hop and upstream credential headers.
func sanitizeResponseHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	dropped := connectionNamed(in)

	for name, values := range in {
		canonical := http.CanonicalHeaderKey(name)
		if _, hop := hopByHopHeaders[canonical]; hop {
			continue
		}
		if _, named := dropped[canonical]; named {
			continue
		}
		if canonical == "Authorization" || canonical == "Content-Length" {
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	return out
}

// connectionNamed returns the header names listed in Connection, which
// become hop-by-hop for this message per RFC 7230.
func connectionNamed(h http.Header) map[string]struct{} {
	named := make(map[string]struct{})
	for _, value := range h.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token != "" {
				named[http.CanonicalHeaderKey(token)] = struct{}{}
			}
		}
	}
	return named
}
