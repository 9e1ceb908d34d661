package config

import "strings"

// IsArgon2PHC reports whether s has the shape of an Argon2id PHC string
// ("$argon2id$v=19$m=...,t=...,p=...$salt$hash"), without fully
// decoding it. The authoritative encode/verify logic lives in
// internal/auth; this is a cheap structural check usable from config
// validation without an import of the auth package.
func IsArgon2PHC(s string) bool {
	if !strings.HasPrefix(s, "$argon2id$") {
		return false
	}
	parts := strings.Split(s, "$")
	// ["", "argon2id", "v=19", "m=...,t=...,p=...", "<salt>", "<hash>"]
	return len(parts) == 6
}
