package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolaspernoud/vestibule/internal/auth"
	"github.com/nicolaspernoud/vestibule/internal/config"
	"github.com/nicolaspernoud/vestibule/internal/slogutil"
)

func newTestRouter(t *testing.T, cfg *config.Config) *Router {
	t.Helper()
	mgr, err := config.NewManager(cfg, t.TempDir()+"/vestibule.yaml")
	require.NoError(t, err)
	session := auth.NewSessionService(cfg.SessionSecret, cfg.Hostname, false)
	log := slogutil.SetupLogRotation(config.LogConfig{Level: "error"})
	return New(mgr, session, log, make(chan struct{}, 1))
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Hostname:      "example.com",
		HTTPPort:      8080,
		SessionSecret: "test-secret-at-least-this-long-0123456789",
		Apps: []config.App{
			{ID: "app1", Host: "app1", ForwardTo: "127.0.0.1:9000", Secured: true, Roles: []string{"USERS"}},
		},
		Davs: []config.Dav{
			{ID: "dav1", Host: "dav1", Directory: t.TempDir(), Writable: true, Secured: false},
		},
		Users: []config.User{},
	}
}

func TestUnknownHostFallsThroughToControlSurface(t *testing.T) {
	r := newTestRouter(t, baseConfig(t))
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Host = "example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vestibule is running")
}

func TestSecuredAppRejectsUnauthenticated(t *testing.T) {
	r := newTestRouter(t, baseConfig(t))
	req := httptest.NewRequest(http.MethodGet, "http://app1.example.com/", nil)
	req.Host = "app1.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnsecuredDavReachableWithoutSession(t *testing.T) {
	r := newTestRouter(t, baseConfig(t))
	req := httptest.NewRequest(http.MethodOptions, "http://dav1.example.com/", nil)
	req.Host = "dav1.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1,2", w.Header().Get("DAV"))
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	r := newTestRouter(t, baseConfig(t))
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/admin/users", nil)
	req.Host = "example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
