package webdav

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nicolaspernoud/vestibule/internal/encryption"
	"github.com/nicolaspernoud/vestibule/internal/utils"
	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

// handleGet serves spec §4.3's GET/HEAD row: ?zip and ?q= on
// directories, conditional/range streaming on files.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, headOnly bool) error {
	path, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	info, err := statOrNotFound(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if _, ok := r.URL.Query()["zip"]; ok {
			return h.serveZip(w, path, headOnly)
		}
		if q := r.URL.Query().Get("q"); q != "" {
			return h.serveSearch(w, path, q)
		}
		return verrors.Newf(verrors.BadRequest, "GET on directory requires ?zip or ?q=")
	}

	return h.serveFile(w, r, path, info, headOnly)
}

// plaintextSize reports the size reported to clients for a file whose
// on-disk size is diskSize: the raw size when the Dav has no key, or
// the AEAD framing's plaintext size when it does (§4.4 Size math).
func (h *Handler) plaintextSize(diskSize int64) int64 {
	if !h.Encrypted() {
		return diskSize
	}
	return encryption.PlaintextSize(diskSize)
}

func etag(info os.FileInfo, ciphertextSize int64) string {
	return fmt.Sprintf(`"%d-%d"`, info.ModTime().UnixMilli(), ciphertextSize)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path string, info os.FileInfo, headOnly bool) error {
	tag := etag(info, info.Size())
	plainSize := h.plaintextSize(info.Size())
	lastMod := info.ModTime().UTC()

	w.Header().Set("ETag", tag)
	w.Header().Set("Last-Modified", lastMod.Format(http.TimeFormat))
	w.Header().Set("Accept-Ranges", "bytes")
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == tag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !lastMod.After(t.Add(time.Second)) {
			w.WriteHeader(http.StatusNotModified)
			return nil
		}
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" && !ifRangeFails(r, tag, lastMod) {
		return h.serveRange(w, path, plainSize, rangeHeader, headOnly)
	}

	w.Header().Set("Content-Length", strconv.FormatInt(plainSize, 10))
	w.WriteHeader(http.StatusOK)
	if headOnly {
		return nil
	}
	return h.streamFull(w, path)
}

// ifRangeFails reports whether an If-Range precondition is present and
// does not match, in which case Range must be ignored and the full
// body served (§4.3 Conditional GET).
func ifRangeFails(r *http.Request, tag string, lastMod time.Time) bool {
	ir := r.Header.Get("If-Range")
	if ir == "" {
		return false
	}
	if ir == tag {
		return false
	}
	if t, err := http.ParseTime(ir); err == nil {
		return lastMod.After(t.Add(time.Second))
	}
	return true
}

func (h *Handler) serveRange(w http.ResponseWriter, path string, plainSize int64, rangeHeader string, headOnly bool) error {
	rh, err := utils.ParseRangeHeader(rangeHeader)
	if err != nil {
		return verrors.New(verrors.BadRequest, "invalid range", err)
	}
	rh = utils.FixRangeHeader(rh, plainSize)
	start, length := rh.Decode(plainSize)
	if length < 0 {
		length = plainSize - start
	}

	if start >= plainSize || start < 0 {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", plainSize))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if start+length > plainSize {
		length = plainSize - start
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, plainSize))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if headOnly || length == 0 {
		return nil
	}
	return h.streamRange(w, path, start, length)
}

func (h *Handler) streamFull(w http.ResponseWriter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return verrors.New(verrors.Internal, "open file", err)
	}
	defer f.Close()

	if !h.Encrypted() {
		_, err := io.Copy(w, f)
		return err
	}
	return h.streamer.DecryptTo(w, f)
}

func (h *Handler) streamRange(w http.ResponseWriter, path string, start, length int64) error {
	f, err := os.Open(path)
	if err != nil {
		return verrors.New(verrors.Internal, "open file", err)
	}
	defer f.Close()

	if !h.Encrypted() {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return verrors.New(verrors.Internal, "seek", err)
		}
		_, err := io.Copy(w, io.LimitReader(f, length))
		return err
	}
	return h.streamer.RangeDecrypt(w, f, start, length)
}
