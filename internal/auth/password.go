package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Deliberately fixed rather than config-tunable:
// spec.md mandates Argon2id PHC strings but leaves tuning unspecified,
// and these match the library's own recommended interactive defaults.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword returns an Argon2id PHC string for plaintext, replacing
// the teacher's bcrypt-based HashPassword (internal/auth/service.go)
// per spec.md §3/§6's explicit mandate for Argon2id.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(plaintext), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash), nil
}

// VerifyPassword checks plaintext against a stored Argon2id PHC
// string, returning false (never an error) for any malformed hash;
// per §7's never-panics rule a corrupt stored hash degrades to "wrong
// password", not a crash.
func VerifyPassword(plaintext, phc string) bool {
	time, memory, threads, salt, hash, err := parsePHC(phc)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(plaintext), salt, time, memory, threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

func parsePHC(phc string) (time uint32, memory uint32, threads uint8, salt, hash []byte, err error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, fmt.Errorf("not an argon2id PHC string")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("bad version field: %w", err)
	}

	var m, t int
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("bad params field: %w", err)
	}
	if m < 1 || t < 1 || p < 1 {
		return 0, 0, 0, nil, nil, fmt.Errorf("params out of range")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("bad salt: %w", err)
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("bad hash: %w", err)
	}
	if len(hash) == 0 {
		return 0, 0, 0, nil, nil, fmt.Errorf("empty hash")
	}

	return uint32(t), uint32(m), p, salt, hash, nil
}
