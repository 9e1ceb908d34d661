package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeysSetsThirtyTwoByteKey(t *testing.T) {
	cfg := &Config{Davs: []Dav{{ID: "d1", Passphrase: "correct horse battery staple"}, {ID: "d2"}}}
	cfg.DeriveKeys()
	assert.Len(t, cfg.Davs[0].Key, 32)
	assert.True(t, cfg.Davs[0].Encrypted())
	assert.Nil(t, cfg.Davs[1].Key)
	assert.False(t, cfg.Davs[1].Encrypted())
}

func TestDeriveKeysIsDeterministic(t *testing.T) {
	a := &Config{Davs: []Dav{{ID: "d1", Passphrase: "same passphrase"}}}
	b := &Config{Davs: []Dav{{ID: "d1", Passphrase: "same passphrase"}}}
	a.DeriveKeys()
	b.DeriveKeys()
	assert.Equal(t, a.Davs[0].Key, b.Davs[0].Key)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Hostname: "example.com",
		HTTPPort: 8080,
		Apps:     []App{{ID: "a1", Host: "app"}},
		Davs:     []Dav{{ID: "d1", Host: "dav", Directory: t.TempDir()}},
		Users:    []User{{Login: "alice", Password: ""}},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())
}

func TestValidateRejectsDuplicateAppID(t *testing.T) {
	cfg := validConfig(t)
	cfg.Apps = append(cfg.Apps, App{ID: "a1", Host: "other"})
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateUserLogin(t *testing.T) {
	cfg := validConfig(t)
	cfg.Users = append(cfg.Users, User{Login: "alice"})
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMalformedPasswordHash(t *testing.T) {
	cfg := validConfig(t)
	cfg.Users[0].Password = "not-a-phc-string"
	assert.Error(t, cfg.Validate())
}

func TestBuildHostMapKeysByHostDotHostname(t *testing.T) {
	cfg := validConfig(t)
	cfg.DeriveKeys()
	hm, err := BuildHostMap(cfg)
	require.NoError(t, err)

	svc, ok := hm.Lookup("app.example.com")
	require.True(t, ok)
	assert.False(t, svc.ServiceSecured())

	_, ok = hm.Lookup("dav.example.com")
	require.True(t, ok)
}

func TestBuildHostMapRejectsHostCollision(t *testing.T) {
	cfg := validConfig(t)
	cfg.Davs[0].Host = "app" // collides with the App's host
	_, err := BuildHostMap(cfg)
	assert.Error(t, err)
}

func TestManagerApplyPublishesNewSnapshot(t *testing.T) {
	cfg := validConfig(t)
	mgr, err := NewManager(cfg, t.TempDir()+"/vestibule.yaml")
	require.NoError(t, err)

	first := mgr.Snapshot()
	updated, err := mgr.DeepCopyConfig()
	require.NoError(t, err)
	updated.Apps = append(updated.Apps, App{ID: "a2", Host: "second"})

	require.NoError(t, mgr.Apply(updated))
	second := mgr.Snapshot()

	assert.NotSame(t, first, second)
	assert.Len(t, first.Config.Apps, 1)
	assert.Len(t, second.Config.Apps, 2)
}

func TestIsArgon2PHCAcceptsHashPassswordOutput(t *testing.T) {
	// Constructed manually to avoid an import cycle with the auth
	// package: a well-formed PHC string must round trip through
	// IsArgon2PHC regardless of which package produced it.
	phc := `$argon2id$v=19$m=65536,t=1,p=4$c29tZXNhbHQ$aGFzaGVkdmFsdWU`
	assert.True(t, IsArgon2PHC(phc))
	assert.False(t, IsArgon2PHC("plain-text-password"))
}
