package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Snapshot is the immutable (Config, HostMap) pair published to every
// handler via dependency injection (§3 Lifecycle, §5 Shared mutable
// state). Handlers never see a Config without its matching HostMap.
type Snapshot struct {
	Config  *Config
	HostMap HostMap
}

// Manager owns the authoritative Config, derives Snapshots from it on
// load/reload/mutation, and persists it back to disk. Shaped after the
// teacher's config.Manager (RWMutex-guarded current value, DeepCopy via
// jinzhu/copier before handing a config to a caller that might mutate
// it), simplified: vestibule has no live component-callback registry,
// since reload is a hard drain-and-rebuild at the server boundary
// (§4.5), not an in-place patch.
type Manager struct {
	mutex      sync.RWMutex
	current    *Snapshot
	configFile string
}

// NewManager wraps an already-loaded Config in a Manager, deriving its
// initial Snapshot.
func NewManager(cfg *Config, configFile string) (*Manager, error) {
	snap, err := newSnapshot(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{current: snap, configFile: configFile}, nil
}

func newSnapshot(cfg *Config) (*Snapshot, error) {
	cfg.DeriveKeys()
	hm, err := BuildHostMap(cfg)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Config: cfg, HostMap: hm}, nil
}

// Snapshot returns the current immutable (Config, HostMap) pair.
// Thread-safe; the returned value must never be mutated by the caller.
func (m *Manager) Snapshot() *Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// DeepCopyConfig returns a mutation-safe copy of the current Config,
// suitable as the starting point for an admin write (load, mutate,
// write-file). Uses jinzhu/copier the way the teacher's
// Config.DeepCopy does, so per-Dav derived keys and slices are never
// aliased with the live snapshot.
func (m *Manager) DeepCopyConfig() (*Config, error) {
	m.mutex.RLock()
	src := m.current.Config
	m.mutex.RUnlock()

	dst := &Config{}
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("deep copy config: %w", err)
	}
	return dst, nil
}

// Apply replaces the current Snapshot, deriving a fresh HostMap from
// cfg. Callers hold no lock across this call; in-flight requests that
// already captured the previous Snapshot keep observing it (§5 Shared
// mutable state) until they complete.
func (m *Manager) Apply(cfg *Config) error {
	snap, err := newSnapshot(cfg)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	m.current = snap
	m.mutex.Unlock()
	return nil
}

// Save persists the current Config to the manager's config file,
// atomically (write to a temp file, then rename) so a crash mid-write
// never leaves a truncated document behind.
func (m *Manager) Save() error {
	m.mutex.RLock()
	cfg := m.current.Config
	m.mutex.RUnlock()
	return SaveToFile(cfg, m.configFile)
}

// ConfigFile returns the path the manager loads from and saves to.
func (m *Manager) ConfigFile() string {
	return m.configFile
}

// SaveToFile rewrites the config document atomically. Dav.Key is never
// serialized (yaml:"-"); Config round-trips per §8 law 4.
func SaveToFile(cfg *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// LoadConfig reads the declarative document at configFile via viper,
// creating a minimal default document (with a freshly generated
// session secret) the first time it's missing, per §4.5 step 1.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = "vestibule.yaml"
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		def, err := defaultConfig()
		if err != nil {
			return nil, fmt.Errorf("build default config: %w", err)
		}
		if err := SaveToFile(def, configFile); err != nil {
			return nil, fmt.Errorf("create default config file %s: %w", configFile, err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	v.SetEnvPrefix("VESTIBULE")
	_ = v.BindEnv("http_port")
	_ = v.BindEnv("hostname")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.SessionSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() (*Config, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	return &Config{
		Hostname:      "localhost",
		HTTPPort:      8080,
		SessionSecret: secret,
		Apps:          []App{},
		Davs:          []Dav{},
		Users:         []User{},
		Log:           LogConfig{Level: "info"},
	}, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}
