// Package proxy implements the header-preserving reverse proxy of
// spec §4.2: request rewriting to the App's forward_to authority,
// response Location rewriting back to the public-facing hostname, and
// client-IP propagation. Grounded in
// original_source/apps.rs's proxy_handler (hyper_reverse_proxy), ported
// onto net/http/httputil.ReverseProxy's Director/ModifyResponse hooks,
// the idiomatic Go shape for the same job.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nicolaspernoud/vestibule/internal/config"
	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

// New builds a *httputil.ReverseProxy for a single App, targeting its
// forward_to authority and rewriting responses back to
// publicHost:publicPort (the App's own virtual hostname and the
// server's external port), per §4.2. autoTLS is the edge server's own
// Config.AutoTLS: it decides the scheme label vestibule rewrites a
// Location redirect's authority to, since that's the scheme clients
// actually reach this server's virtual host through, independent of
// whatever scheme the upstream itself happens to speak.
func New(app config.App, publicHost string, publicPort int, autoTLS bool) (*httputil.ReverseProxy, error) {
	target, err := upstreamURL(app.ForwardTo)
	if err != nil {
		return nil, fmt.Errorf("proxy: app %q: %w", app.ID, err)
	}

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			director(req, target)
		},
		ModifyResponse: func(resp *http.Response) error {
			rewriteLocation(resp, target, publicHost, publicPort, autoTLS)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			verrors.WriteHTTP(w, verrors.New(verrors.UpstreamUnavailable, "upstream unavailable", err))
		},
		Transport: retryingTransport(),
	}
	return rp, nil
}

// retryingTransport wraps the default transport's dial step with
// DialWithRetry, so a transient connection refusal to a just-restarted
// upstream App doesn't surface as UpstreamUnavailable on the first
// failed attempt.
func retryingTransport() http.RoundTripper {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		var conn net.Conn
		err := DialWithRetry(func() error {
			c, dialErr := dialer.DialContext(ctx, network, addr)
			if dialErr != nil {
				return dialErr
			}
			conn = c
			return nil
		})
		return conn, err
	}
	return t
}

// upstreamURL parses forward_to, defaulting to scheme http:// unless
// the value is already prefixed https://, per §4.2's request rewrite
// rule.
func upstreamURL(forwardTo string) (*url.URL, error) {
	raw := forwardTo
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid forward_to %q: %w", forwardTo, err)
	}
	return u, nil
}

func director(req *http.Request, target *url.URL) {
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	req.URL.Path, req.URL.RawPath = joinPath(target.Path, req.URL.Path)
	if target.RawQuery == "" || req.URL.RawQuery == "" {
		req.URL.RawQuery = target.RawQuery + req.URL.RawQuery
	} else {
		req.URL.RawQuery = target.RawQuery + "&" + req.URL.RawQuery
	}

	// Force HTTP/1.1 on the upstream-side request line.
	req.Proto = "HTTP/1.1"
	req.ProtoMajor = 1
	req.ProtoMinor = 1

	// If the upstream authority has no port, it's an external
	// service: overwrite Host to defeat SNI/Host-based routing
	// upstream rather than leaking the public-facing vestibule host.
	if _, _, err := net.SplitHostPort(target.Host); err != nil {
		req.Host = target.Host
	}

	propagateClientIP(req)

	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header.Set("User-Agent", "")
	}
}

func joinPath(a, b string) (path, rawPath string) {
	if a == "" {
		return b, ""
	}
	if b == "" {
		return a, ""
	}
	if strings.HasSuffix(a, "/") {
		a = strings.TrimSuffix(a, "/")
	}
	return a + b, ""
}

// propagateClientIP appends the client address as the first
// forwarded-for hop, per §4.2.
func propagateClientIP(req *http.Request) {
	clientIP, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		clientIP = req.RemoteAddr
	}
	if prior, ok := req.Header["X-Forwarded-For"]; ok {
		clientIP = strings.Join(prior, ", ") + ", " + clientIP
	}
	req.Header.Set("X-Forwarded-For", clientIP)
}

// rewriteLocation rewrites a Location header whose authority contains
// the upstream host back to the public-facing authority, preserving
// path/query/fragment, per §4.2's Response rewrite rule and law 7.
func rewriteLocation(resp *http.Response, target *url.URL, publicHost string, publicPort int, autoTLS bool) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return
	}

	locURL, err := url.Parse(loc)
	if err != nil || locURL.Host == "" {
		return
	}

	if !strings.Contains(locURL.Host, target.Host) {
		return
	}

	locURL.Scheme = publicScheme(autoTLS)
	locURL.Host = fmt.Sprintf("%s:%d", publicHost, publicPort)
	resp.Header.Set("Location", locURL.String())
}

// publicScheme reports the scheme clients reach this edge server
// through, driven by Config.AutoTLS rather than the upstream's own
// scheme — the two are independent (an App can speak plain HTTP
// internally while vestibule terminates TLS for its public hostname).
func publicScheme(autoTLS bool) string {
	if autoTLS {
		return "https"
	}
	return "http"
}

// DialWithRetry wraps a dial function with the retry policy applied to
// every upstream connection attempt (see retryingTransport) before a
// failure surfaces as verrors.UpstreamUnavailable, grounded in the
// domain stack's use of avast/retry-go for transient upstream
// failures.
func DialWithRetry(dial func() error) error {
	return retry.Do(
		dial,
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
}
