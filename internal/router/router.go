// Package router implements the host-dispatch edge of spec §4.1: one
// HTTP entrypoint that either forwards to an App's reverse proxy,
// serves a Dav's WebDAV handler, or falls through to the control
// surface (login, admin API, reload, status page), grounded in
// original_source's axum host-extractor dispatch and the teacher's
// cmd/.../serve.go HTTP mux wiring.
package router

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-pkgz/auth/v2/token"

	"github.com/nicolaspernoud/vestibule/internal/auth"
	"github.com/nicolaspernoud/vestibule/internal/config"
	"github.com/nicolaspernoud/vestibule/internal/proxy"
	"github.com/nicolaspernoud/vestibule/internal/slogutil"
	"github.com/nicolaspernoud/vestibule/internal/verrors"
	"github.com/nicolaspernoud/vestibule/internal/webdav"
)

// Router is the top-level http.Handler vestibule listens with.
type Router struct {
	manager    *config.Manager
	session    *token.Service
	log        *slog.Logger
	reloadChan chan struct{}

	mu       sync.Mutex
	cacheFor *config.Snapshot
	cache    map[string]http.Handler

	mux *http.ServeMux
}

// New builds a Router bound to manager's live snapshot. reloadChan
// receives a value every time GET /reload is hit; the caller (cmd
// serve loop) owns draining it and rebuilding the listening server.
func New(manager *config.Manager, session *token.Service, log *slog.Logger, reloadChan chan struct{}) *Router {
	r := &Router{
		manager:    manager,
		session:    session,
		log:        log,
		reloadChan: reloadChan,
	}
	r.mux = r.buildControlMux()
	return r
}

// controlHandler wraps the control-surface mux with session
// attachment, so admin handlers can read auth.FromContext.
func (r *Router) controlHandler() http.Handler {
	return auth.WithPrincipal(r.session)(r.mux)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	host := hostWithoutPort(req.Host)

	ctx := slogutil.WithAttrs(req.Context(),
		slog.String("client_ip", clientIP(req)),
		slog.String("method", req.Method),
		slog.String("host", host),
		slog.String("path", req.URL.Path),
	)
	req = req.WithContext(ctx)

	snap := r.manager.Snapshot()

	svc, ok := snap.HostMap.Lookup(host)
	if !ok {
		r.controlHandler().ServeHTTP(w, req)
		return
	}

	handler, err := r.handlerFor(snap, host, svc)
	if err != nil {
		r.log.ErrorContext(ctx, "build service handler", "error", err)
		verrors.WriteHTTP(w, verrors.New(verrors.Internal, "service unavailable", err))
		return
	}

	principal, hasSession := auth.SessionFromRequest(r.session, req)
	if svc.ServiceSecured() {
		if !hasSession || !auth.Authorized(true, principal.Roles, svc.ServiceRoles()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	r.log.InfoContext(ctx, "dispatch")
	handler.ServeHTTP(w, req)
}

func clientIP(req *http.Request) string {
	if ip, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return ip
	}
	return req.RemoteAddr
}

// handlerFor returns the cached reverse-proxy/webdav handler for svc,
// rebuilding the whole cache whenever the config snapshot changes
// (reload publishes a new *Snapshot pointer — §4.5 step 4).
func (r *Router) handlerFor(snap *config.Snapshot, host string, svc config.Service) (http.Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cacheFor != snap {
		r.cache = make(map[string]http.Handler, len(snap.HostMap))
		r.cacheFor = snap
	}
	if h, ok := r.cache[host]; ok {
		return h, nil
	}

	var h http.Handler
	var err error
	switch s := svc.(type) {
	case config.AppService:
		h, err = proxy.New(s.App, host, snap.Config.HTTPPort, snap.Config.AutoTLS)
	case config.DavService:
		h, err = webdav.New(s.Dav)
	default:
		h, err = nil, verrors.Newf(verrors.Internal, "unknown service kind")
	}
	if err != nil {
		return nil, err
	}
	r.cache[host] = h
	return h, nil
}

func hostWithoutPort(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.ToLower(hostport)
}
