// Package webdav implements the built-in WebDAV ("Dav") service of
// spec §4.3: verb dispatch, conditional/range GET, zip-on-the-fly,
// directory search, and PROPFIND/PROPPATCH/LOCK serialization. Grounded
// in original_source/webdav_server.rs's method dispatch; the teacher's
// golang.org/x/net/webdav-based adapter (internal/webdav/adapter.go,
// deleted) was not reused because the spec's verb table mandates fixed
// behaviors (PROPPATCH always 403, fake LOCK tokens, a non-negotiable
// Allow header) that don't fit that package's general RFC4918 property
// model.
package webdav

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicolaspernoud/vestibule/internal/config"
	"github.com/nicolaspernoud/vestibule/internal/encryption"
	"github.com/nicolaspernoud/vestibule/internal/utils"
	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

// Handler serves one Dav's filesystem subtree.
type Handler struct {
	Dav      config.Dav
	streamer *encryption.Streamer
}

// New builds a Handler for dav. If dav carries a derived key, file
// contents are transparently encrypted at rest; otherwise the streamer
// is nil and bytes pass through unmodified (§4.4 Open Question 1 fix —
// never encrypt under an absent/zero key).
func New(dav config.Dav) (*Handler, error) {
	h := &Handler{Dav: dav}
	if dav.Encrypted() {
		s, err := encryption.New(dav.Key)
		if err != nil {
			return nil, err
		}
		h.streamer = s
	}
	return h, nil
}

// Encrypted reports whether this Dav's contents are framed through the
// chunked AEAD streamer.
func (h *Handler) Encrypted() bool { return h.streamer != nil }

// resolvePath joins the URL path (passed through by the router as is,
// with no prefix stripped — Open Question 2) onto h.Dav.Directory,
// rejecting any path that escapes Directory via symlinks when
// AllowSymlinks is false. Escape, or a path traversal via "..", maps to
// verrors.NotFound per §4.3.
func (h *Handler) resolvePath(urlPath string) (string, error) {
	if rel := strings.TrimLeft(urlPath, "/"); rel != "" && !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", verrors.Newf(verrors.NotFound, "path escapes dav directory")
	}
	clean := utils.ToAbsPath(urlPath)
	joined := filepath.Join(h.Dav.Directory, clean)

	full, err := filepath.Abs(joined)
	if err != nil {
		return "", verrors.New(verrors.Internal, "resolve request path", err)
	}
	root, err := filepath.Abs(h.Dav.Directory)
	if err != nil {
		return "", verrors.New(verrors.Internal, "resolve dav directory", err)
	}
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", verrors.Newf(verrors.NotFound, "path escapes dav directory")
	}

	if h.Dav.AllowSymlinks {
		return full, nil
	}

	contained, err := isRootContained(full, root)
	if err != nil {
		// Path doesn't exist yet (PUT/MKCOL target): the textual
		// containment check above is the best available guarantee.
		return full, nil
	}
	if !contained {
		return "", verrors.Newf(verrors.NotFound, "path escapes dav directory via symlink")
	}
	return full, nil
}

// isRootContained resolves symlinks in path and reports whether the
// result still lives under root, grounded in
// original_source/webdav_server.rs's is_root_contained
// (fs::canonicalize(path).starts_with(directory)). Unlike the Rust
// source — which hardcodes allow_symlink = true and so never actually
// exercises this check — vestibule wires it to Dav.AllowSymlinks.
func isRootContained(path, root string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, err
	}
	return resolved == root || strings.HasPrefix(resolved, root+string(filepath.Separator)), nil
}

func statOrNotFound(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, verrors.Newf(verrors.NotFound, "not found")
		}
		return nil, verrors.New(verrors.Internal, "stat", err)
	}
	return info, nil
}
