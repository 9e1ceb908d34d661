package router

import (
	"encoding/json"
	"net/http"

	"github.com/nicolaspernoud/vestibule/internal/auth"
	"github.com/nicolaspernoud/vestibule/internal/config"
)

// writeJSON is a small helper shared by the list handlers below.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// mutateAndPersist applies mutate to a fresh deep copy of the current
// config, validates it, publishes it, and writes it to disk — the
// read-modify-write critical section named in §5's locking discipline
// (last-writer-wins between racing admins).
func (r *Router) mutateAndPersist(w http.ResponseWriter, mutate func(*config.Config) error) bool {
	cfg, err := r.manager.DeepCopyConfig()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	if err := mutate(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := r.manager.Apply(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := r.manager.Save(); err != nil {
		http.Error(w, "could not persist config", http.StatusInternalServerError)
		return false
	}
	return true
}

// --- users ---

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.manager.Snapshot().Config.Users)
}

func (r *Router) upsertUser(w http.ResponseWriter, req *http.Request) {
	// config.User hides Password from JSON, so the plaintext password
	// is read from the body through a separate field.
	var body struct {
		config.User
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	in := body.User
	in.Password = body.Password
	if in.Login == "" {
		http.Error(w, "login is required", http.StatusBadRequest)
		return
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			http.Error(w, "could not hash password", http.StatusInternalServerError)
			return
		}
		in.Password = hash
	}

	status := http.StatusOK
	ok := r.mutateAndPersist(w, func(cfg *config.Config) error {
		for i := range cfg.Users {
			if cfg.Users[i].Login == in.Login {
				if in.Password == "" {
					in.Password = cfg.Users[i].Password
				}
				cfg.Users[i] = in
				return nil
			}
		}
		status = http.StatusCreated
		cfg.Users = append(cfg.Users, in)
		return nil
	})
	if !ok {
		return
	}
	writeJSON(w, status, in)
}

func (r *Router) deleteUser(w http.ResponseWriter, req *http.Request) {
	login := req.PathValue("login")
	ok := r.mutateAndPersist(w, func(cfg *config.Config) error {
		for i := range cfg.Users {
			if cfg.Users[i].Login == login {
				cfg.Users = append(cfg.Users[:i], cfg.Users[i+1:]...)
				return nil
			}
		}
		return nil
	})
	if !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- apps ---

func (r *Router) listApps(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.manager.Snapshot().Config.Apps)
}

func (r *Router) upsertApp(w http.ResponseWriter, req *http.Request) {
	var in config.App
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if in.ID == "" || in.Host == "" {
		http.Error(w, "id and host are required", http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	ok := r.mutateAndPersist(w, func(cfg *config.Config) error {
		for i := range cfg.Apps {
			if cfg.Apps[i].ID == in.ID {
				cfg.Apps[i] = in
				return nil
			}
		}
		status = http.StatusCreated
		cfg.Apps = append(cfg.Apps, in)
		return nil
	})
	if !ok {
		return
	}
	writeJSON(w, status, in)
}

func (r *Router) deleteApp(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	ok := r.mutateAndPersist(w, func(cfg *config.Config) error {
		for i := range cfg.Apps {
			if cfg.Apps[i].ID == id {
				cfg.Apps = append(cfg.Apps[:i], cfg.Apps[i+1:]...)
				return nil
			}
		}
		return nil
	})
	if !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- davs ---

func (r *Router) listDavs(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.manager.Snapshot().Config.Davs)
}

func (r *Router) upsertDav(w http.ResponseWriter, req *http.Request) {
	var in config.Dav
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if in.ID == "" || in.Host == "" || in.Directory == "" {
		http.Error(w, "id, host and directory are required", http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	ok := r.mutateAndPersist(w, func(cfg *config.Config) error {
		for i := range cfg.Davs {
			if cfg.Davs[i].ID == in.ID {
				if in.Passphrase == "" {
					in.Passphrase = cfg.Davs[i].Passphrase
				}
				cfg.Davs[i] = in
				return nil
			}
		}
		status = http.StatusCreated
		cfg.Davs = append(cfg.Davs, in)
		return nil
	})
	if !ok {
		return
	}
	writeJSON(w, status, in)
}

func (r *Router) deleteDav(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	ok := r.mutateAndPersist(w, func(cfg *config.Config) error {
		for i := range cfg.Davs {
			if cfg.Davs[i].ID == id {
				cfg.Davs = append(cfg.Davs[:i], cfg.Davs[i+1:]...)
				return nil
			}
		}
		return nil
	})
	if !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
