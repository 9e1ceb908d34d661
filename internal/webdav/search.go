package webdav

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

var fold = cases.Fold(cases.Compact(language.Und))

// searchItem is one matched entry in a ?q= directory search response,
// completing original_source/webdav_server.rs's handle_query_dir TODO
// ("send paths as json"), which was never implemented (always returned
// an empty body).
type searchItem struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	Mtime string `json:"mtime"`
}

// serveSearch recursively walks dirPath, bounding concurrency across
// its immediate subtrees with sourcegraph/conc/pool, and returns JSON
// for every entry whose name contains term case-insensitively (§4.3
// GET-with-?q= row).
func (h *Handler) serveSearch(w http.ResponseWriter, dirPath string, term string) error {
	needle := fold.String(term)

	topEntries, err := os.ReadDir(dirPath)
	if err != nil {
		return verrors.New(verrors.Internal, "read directory", err)
	}

	var mu sync.Mutex
	var matches []searchItem

	p := pool.New().WithMaxGoroutines(8).WithErrors()
	for _, e := range topEntries {
		entry := e
		p.Go(func() error {
			childPath := filepath.Join(dirPath, entry.Name())
			found, err := h.searchSubtree(dirPath, childPath, needle)
			if err != nil {
				return err
			}
			mu.Lock()
			matches = append(matches, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return verrors.New(verrors.Internal, "search", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(matches)
}

// searchSubtree walks one top-level child of root, skipping symlinks
// when the Dav disallows them (matching the containment rule applied
// to every other verb).
func (h *Handler) searchSubtree(root, start, needle string) ([]searchItem, error) {
	var found []searchItem
	err := filepath.WalkDir(start, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !h.Dav.AllowSymlinks {
			if info, ierr := d.Info(); ierr == nil && info.Mode()&os.ModeSymlink != 0 {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if strings.Contains(fold.String(d.Name()), needle) {
			info, ierr := d.Info()
			if ierr != nil {
				return nil
			}
			rel, rerr := filepath.Rel(root, p)
			if rerr != nil {
				rel = p
			}
			size := info.Size()
			if !d.IsDir() {
				size = h.plaintextSize(size)
			} else {
				size = 0
			}
			found = append(found, searchItem{
				Path:  filepath.ToSlash(rel),
				Name:  d.Name(),
				IsDir: d.IsDir(),
				Size:  size,
				Mtime: info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		return nil
	})
	return found, err
}
