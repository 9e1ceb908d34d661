package webdav

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"

	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

func init() {
	// Faster deflate than stdlib's archive/zip default, per the domain
	// stack's klauspost/compress wiring.
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
}

// serveZip streams a ZIP of the subtree rooted at dirPath to w, named
// "<dir>.zip", per §4.3's GET-with-?zip row. The archive is produced by
// a separate goroutine writing into an io.Pipe so the HTTP response
// never buffers the whole subtree, and the walk/producer pair is
// cancelled without writing a partial-archive error if the client
// disconnects mid-stream.
func (h *Handler) serveZip(w http.ResponseWriter, dirPath string, headOnly bool) error {
	name := filepath.Base(dirPath) + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	if headOnly {
		return nil
	}

	pr, pw := io.Pipe()
	g := new(errgroup.Group)

	g.Go(func() error {
		defer pw.Close()
		return h.writeZip(pw, dirPath)
	})

	_, copyErr := io.Copy(w, pr)
	pr.CloseWithError(copyErr)
	_ = g.Wait()
	return nil
}

func (h *Handler) writeZip(w io.Writer, dirPath string) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	err := filepath.WalkDir(dirPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dirPath, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		// Symlinks are skipped when the Dav disallows them (matching
		// the containment rule applied to every other verb, and
		// internal/webdav/search.go's searchSubtree); irregular files
		// (sockets, devices, named pipes) are always skipped.
		if info.Mode()&os.ModeSymlink != 0 {
			if !h.Dav.AllowSymlinks {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		} else if !d.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		if d.IsDir() {
			_, err := zw.Create(rel + "/")
			return err
		}

		fh, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		fh.Name = rel
		fh.Method = zip.Deflate

		entry, err := zw.CreateHeader(fh)
		if err != nil {
			return err
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		if !h.Encrypted() {
			_, err = io.Copy(entry, f)
			return err
		}
		return h.streamer.DecryptTo(entry, f)
	})
	if err != nil {
		return verrors.New(verrors.Internal, "build zip archive", err)
	}
	return nil
}
