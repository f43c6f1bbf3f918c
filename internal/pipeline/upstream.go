package pipeline

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apiconduit/conduit/internal/egress"
	"github.com/apiconduit/conduit/internal/route"
)

// maxRedirects bounds redirect chains; every hop is re-validated
// against the egress guard before it is followed.
const maxRedirects = 5

// Doer issues the upstream HTTP call. *http.Client satisfies it; tests
// substitute counters and stubs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient builds the upstream client. Redirect targets are
// validated against the guard so a compliant upstream cannot bounce
// the gateway into a blocked network.
func NewHTTPClient(guard *egress.Guard, maxIdleConns int) *http.Client {
	if maxIdleConns <= 0 {
		maxIdleConns = 100
	}

	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if guard != nil {
				if err := guard.Validate(req.URL.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// buildUpstreamURL joins the connector base URL with the route's
// upstream path template, substituting captured path parameters, and
// carries the inbound query string through untouched.
func buildUpstreamURL(baseURL, pathTemplate string, params map[string]string, rawQuery string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse connector base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("connector base url %q is not absolute", baseURL)
	}

	upstreamPath := route.SubstitutePath(pathTemplate, params)
	if upstreamPath != "" && !strings.HasPrefix(upstreamPath, "/") {
		upstreamPath = "/" + upstreamPath
	}

	joined := *base
	joined.Path = strings.TrimRight(base.Path, "/") + upstreamPath
	joined.RawQuery = rawQuery
	return joined.String(), nil
}
