package utils

import (
	"path/filepath"
)

// ToAbsPath cleans a WebDAV request path into a rooted, separator-normalized
// form suitable for joining onto a Dav's directory, used by
// internal/webdav.Handler.resolvePath.
func ToAbsPath(name string) string {
	if name == "" {
		return string(filepath.Separator)
	}

	if !filepath.IsAbs(name) {
		name = string(filepath.Separator) + name
	}

	return filepath.Clean(filepath.FromSlash(name))
}
