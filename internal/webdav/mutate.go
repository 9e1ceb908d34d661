package webdav

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

func (h *Handler) requireWritable() error {
	if !h.Dav.Writable {
		return verrors.Newf(verrors.Forbidden, "dav is read-only")
	}
	return nil
}

// handlePut writes the request body to path, creating parent
// directories and encrypting through the streamer when the Dav has a
// key (§4.3 PUT row).
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	path, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return verrors.New(verrors.Internal, "create parent directories", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return verrors.New(verrors.Internal, "create file", err)
	}
	defer f.Close()

	if h.Encrypted() {
		if _, err := h.streamer.EncryptTo(f, r.Body); err != nil {
			return verrors.New(verrors.Internal, "encrypt upload", err)
		}
	} else {
		if _, err := io.Copy(f, r.Body); err != nil {
			return verrors.New(verrors.Internal, "write upload", err)
		}
	}

	w.WriteHeader(http.StatusCreated)
	return nil
}

// handleDelete removes path, recursively for directories (§4.3 DELETE row).
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	path, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	if _, err := statOrNotFound(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return verrors.New(verrors.Internal, "delete", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleMkcol creates a directory chain at path, failing if the target
// already exists (§4.3 MKCOL row).
func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	path, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return verrors.Newf(verrors.BadRequest, "target already exists")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return verrors.New(verrors.Internal, "mkcol", err)
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *Handler) destinationPath(r *http.Request) (string, error) {
	dest := r.Header.Get("Destination")
	if dest == "" {
		return "", verrors.Newf(verrors.BadRequest, "missing Destination header")
	}
	u, err := url.Parse(dest)
	if err != nil {
		return "", verrors.New(verrors.BadRequest, "invalid Destination", err)
	}
	return h.resolvePath(u.Path)
}

// handleCopy copies a regular file source -> Destination, ensuring the
// destination's parent directory exists (§4.3 COPY row).
func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	src, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	info, err := statOrNotFound(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return verrors.Newf(verrors.BadRequest, "COPY only supports regular files")
	}
	dst, err := h.destinationPath(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return verrors.New(verrors.Internal, "ensure destination parent", err)
	}
	if err := copyFile(src, dst); err != nil {
		return verrors.New(verrors.Internal, "copy", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleMove renames source to Destination (§4.3 MOVE row).
func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	src, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	if _, err := statOrNotFound(src); err != nil {
		return err
	}
	dst, err := h.destinationPath(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return verrors.New(verrors.Internal, "ensure destination parent", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return verrors.New(verrors.Internal, "move", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
