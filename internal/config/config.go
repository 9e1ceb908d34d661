// Package config defines the declarative document vestibule loads at
// startup and on reload, and the process-wide host map derived from it.
package config

import (
	"crypto/sha256"
	"fmt"

	"github.com/nicolaspernoud/vestibule/internal/pathutil"
)

// App is a reverse-proxied service entry.
type App struct {
	ID        string   `yaml:"id" mapstructure:"id" json:"id"`
	Name      string   `yaml:"name" mapstructure:"name" json:"name"`
	Icon      string   `yaml:"icon" mapstructure:"icon" json:"icon,omitempty"`
	Color     string   `yaml:"color" mapstructure:"color" json:"color,omitempty"`
	Host      string   `yaml:"host" mapstructure:"host" json:"host"`
	ForwardTo string   `yaml:"forward_to" mapstructure:"forward_to" json:"forward_to"`
	Secured   bool     `yaml:"secured" mapstructure:"secured" json:"secured"`
	Roles     []string `yaml:"roles" mapstructure:"roles" json:"roles"`
}

// Dav is a built-in WebDAV service rooted at a local directory.
type Dav struct {
	ID            string   `yaml:"id" mapstructure:"id" json:"id"`
	Name          string   `yaml:"name" mapstructure:"name" json:"name"`
	Icon          string   `yaml:"icon" mapstructure:"icon" json:"icon,omitempty"`
	Color         string   `yaml:"color" mapstructure:"color" json:"color,omitempty"`
	Host          string   `yaml:"host" mapstructure:"host" json:"host"`
	Directory     string   `yaml:"directory" mapstructure:"directory" json:"directory"`
	Writable      bool     `yaml:"writable" mapstructure:"writable" json:"writable"`
	Secured       bool     `yaml:"secured" mapstructure:"secured" json:"secured"`
	AllowSymlinks bool     `yaml:"allow_symlinks" mapstructure:"allow_symlinks" json:"allow_symlinks"`
	Roles         []string `yaml:"roles" mapstructure:"roles" json:"roles"`
	Passphrase    string   `yaml:"passphrase" mapstructure:"passphrase" json:"passphrase,omitempty"`

	// Key is the 32-byte symmetric key derived from Passphrase at load
	// time. It is never serialized and lives only in memory.
	Key []byte `yaml:"-" mapstructure:"-" json:"-"`
}

// Encrypted reports whether files under this Dav are stored at rest
// through the chunked AEAD streamer.
func (d *Dav) Encrypted() bool {
	return len(d.Key) == 32
}

// User is a local login principal.
type User struct {
	Login string `yaml:"login" mapstructure:"login" json:"login"`
	// Password is an Argon2id PHC string, or empty to preserve the
	// previous hash on an update.
	Password string   `yaml:"password" mapstructure:"password" json:"-"`
	Roles    []string `yaml:"roles" mapstructure:"roles" json:"roles"`
}

// LogConfig controls the ambient logging sink, following the teacher's
// internal/slogutil rotation setup.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file" json:"file"`
	Level      string `yaml:"level" mapstructure:"level" json:"level"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" mapstructure:"compress" json:"compress"`
}

// Config is the single declarative document materializing §3's data
// model. It round-trips to YAML; Dav.Key is always stripped.
type Config struct {
	Hostname         string `yaml:"hostname" mapstructure:"hostname" json:"hostname"`
	HTTPPort         int    `yaml:"http_port" mapstructure:"http_port" json:"http_port"`
	AutoTLS          bool   `yaml:"auto_tls" mapstructure:"auto_tls" json:"auto_tls"`
	LetsEncryptEmail string `yaml:"letsencrypt_email" mapstructure:"letsencrypt_email" json:"letsencrypt_email,omitempty"`

	// SessionSecret signs the VESTIBULE_AUTH cookie. Generated once at
	// setup time and persisted; never exposed over the admin API.
	SessionSecret string `yaml:"session_secret" mapstructure:"session_secret" json:"-"`

	Apps  []App  `yaml:"apps" mapstructure:"apps" json:"apps"`
	Davs  []Dav  `yaml:"davs" mapstructure:"davs" json:"davs"`
	Users []User `yaml:"users" mapstructure:"users" json:"users"`

	Log LogConfig `yaml:"log" mapstructure:"log" json:"log,omitempty"`
}

// DeriveKeys computes Dav.Key = SHA-256(passphrase) for every Dav with
// a non-empty passphrase, per §4.5 step 2. Called once per load.
func (c *Config) DeriveKeys() {
	for i := range c.Davs {
		d := &c.Davs[i]
		if d.Passphrase == "" {
			d.Key = nil
			continue
		}
		sum := sha256.Sum256([]byte(d.Passphrase))
		d.Key = sum[:]
	}
}

// Validate enforces §3's invariants that don't require the host map.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}

	seen := make(map[string]struct{}, len(c.Apps))
	for _, a := range c.Apps {
		if a.ID == "" {
			return fmt.Errorf("app with empty id")
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate app id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Host == "" {
			return fmt.Errorf("app %q: host must not be empty", a.ID)
		}
	}

	seen = make(map[string]struct{}, len(c.Davs))
	for _, d := range c.Davs {
		if d.ID == "" {
			return fmt.Errorf("dav with empty id")
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("duplicate dav id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Host == "" {
			return fmt.Errorf("dav %q: host must not be empty", d.ID)
		}
		if d.Directory == "" {
			return fmt.Errorf("dav %q: directory must not be empty", d.ID)
		}
		if d.Writable {
			if err := pathutil.CheckDirectoryWritable(d.Directory); err != nil {
				return fmt.Errorf("dav %q: %w", d.ID, err)
			}
		}
	}

	if err := pathutil.CheckFileDirectoryWritable(c.Log.File, "log"); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	logins := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if u.Login == "" {
			return fmt.Errorf("user with empty login")
		}
		if _, dup := logins[u.Login]; dup {
			return fmt.Errorf("duplicate user login %q", u.Login)
		}
		logins[u.Login] = struct{}{}
		if u.Password != "" && !IsArgon2PHC(u.Password) {
			return fmt.Errorf("user %q: password is not a valid argon2id PHC string", u.Login)
		}
	}

	return nil
}
