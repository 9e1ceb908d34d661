package router

import (
	"encoding/json"
	"net/http"

	"github.com/nicolaspernoud/vestibule/internal/auth"
	"github.com/nicolaspernoud/vestibule/internal/config"
)

// buildControlMux wires the well-known control-surface prefixes of §6:
// /auth/local, /reload, /api/admin/{users,apps,davs}, and / — grounded
// in the teacher's cmd/.../serve.go route table, generalized from its
// NZB-specific admin routes to vestibule's users/apps/davs.
func (r *Router) buildControlMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/local", r.handleLogin)
	mux.HandleFunc("GET /reload", r.handleReload)

	mux.Handle("GET /api/admin/users", auth.RequireAdmin(http.HandlerFunc(r.listUsers)))
	mux.Handle("POST /api/admin/users", auth.RequireAdmin(http.HandlerFunc(r.upsertUser)))
	mux.Handle("DELETE /api/admin/users/{login}", auth.RequireAdmin(http.HandlerFunc(r.deleteUser)))

	mux.Handle("GET /api/admin/apps", auth.RequireAdmin(http.HandlerFunc(r.listApps)))
	mux.Handle("POST /api/admin/apps", auth.RequireAdmin(http.HandlerFunc(r.upsertApp)))
	mux.Handle("DELETE /api/admin/apps/{id}", auth.RequireAdmin(http.HandlerFunc(r.deleteApp)))

	mux.Handle("GET /api/admin/davs", auth.RequireAdmin(http.HandlerFunc(r.listDavs)))
	mux.Handle("POST /api/admin/davs", auth.RequireAdmin(http.HandlerFunc(r.upsertDav)))
	mux.Handle("DELETE /api/admin/davs/{id}", auth.RequireAdmin(http.HandlerFunc(r.deleteDav)))

	mux.HandleFunc("GET /{$}", r.handleStatus)

	return mux
}

// handleLogin implements §6's POST /auth/local: verifies login+password
// against the stored Argon2id hash and, on success, sets the signed
// VESTIBULE_AUTH cookie with the password stripped.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var creds struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	snap := r.manager.Snapshot()
	var found *config.User
	for i := range snap.Config.Users {
		if snap.Config.Users[i].Login == creds.Login {
			found = &snap.Config.Users[i]
			break
		}
	}
	if found == nil || !auth.VerifyPassword(creds.Password, found.Password) {
		r.log.WarnContext(req.Context(), "login rejected", "login", creds.Login)
		http.Error(w, "unknown login or bad password", http.StatusUnauthorized)
		return
	}

	if err := auth.SetSession(r.session, w, auth.Principal{Login: found.Login, Roles: found.Roles}); err != nil {
		http.Error(w, "could not set session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleReload implements §6's GET /reload: signals the outer serve
// loop to drain the current server and rebuild (Config, HostMap) on
// the same address (§4.5).
func (r *Router) handleReload(w http.ResponseWriter, req *http.Request) {
	select {
	case r.reloadChan <- struct{}{}:
	default:
	}
	w.WriteHeader(http.StatusOK)
}

// handleStatus serves a minimal status page at the control surface
// root, named trivial but required in spec.md §1; teacher precedent is
// cmd/.../serve.go's getStaticFileHandler.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	snap := r.manager.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("vestibule is running\nhostname: " + snap.Config.Hostname + "\n"))
}
