package webdav

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

const multistatusHeader = `<?xml version="1.0" encoding="utf-8"?>` + "\n" +
	`<D:multistatus xmlns:D="DAV:">`
const multistatusFooter = `</D:multistatus>`

func writeMultistatus(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	fmt.Fprint(w, multistatusHeader+body+multistatusFooter)
}

// handlePropfind serves §4.3's PROPFIND row: Depth 0|1 multistatus XML
// with displayname/getcontentlength/getlastmodified/resourcetype per
// entry, grounded in original_source/webdav_server.rs's PROPFIND
// response shape.
func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request) error {
	reqPath, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	info, err := statOrNotFound(reqPath)
	if err != nil {
		return err
	}

	depth := r.Header.Get("Depth")
	if depth == "" {
		depth = "1"
	}

	var b strings.Builder
	b.WriteString(h.propfindEntry(r.URL.Path, info))

	if info.IsDir() && depth != "0" {
		entries, err := os.ReadDir(reqPath)
		if err != nil {
			return verrors.New(verrors.Internal, "read directory", err)
		}
		for _, e := range entries {
			childInfo, err := e.Info()
			if err != nil {
				continue
			}
			childHref := path.Join(r.URL.Path, e.Name())
			b.WriteString(h.propfindEntry(childHref, childInfo))
		}
	}

	writeMultistatus(w, b.String())
	return nil
}

func (h *Handler) propfindEntry(href string, info os.FileInfo) string {
	size := info.Size()
	resourceType := ""
	if info.IsDir() {
		resourceType = "<D:collection/>"
		size = 0
	} else {
		size = h.plaintextSize(size)
	}

	return fmt.Sprintf(`<D:response>
<D:href>%s</D:href>
<D:propstat>
<D:prop>
<D:displayname>%s</D:displayname>
<D:getcontentlength>%d</D:getcontentlength>
<D:getlastmodified>%s</D:getlastmodified>
<D:resourcetype>%s</D:resourcetype>
</D:prop>
<D:status>HTTP/1.1 200 OK</D:status>
</D:propstat>
</D:response>`,
		html.EscapeString(href),
		html.EscapeString(filepath.Base(href)),
		size,
		info.ModTime().UTC().Format(http.TimeFormat),
		resourceType,
	)
}

// handleProppatch always rejects the patch with a fixed 403
// multistatus, grounded in original_source/webdav_server.rs's
// handle_proppatch (§4.3 PROPPATCH row).
func (h *Handler) handleProppatch(w http.ResponseWriter, r *http.Request) error {
	path, err := h.resolvePath(r.URL.Path)
	if err != nil {
		return err
	}
	if _, err := statOrNotFound(path); err != nil {
		return err
	}

	body := fmt.Sprintf(`<D:response>
<D:href>%s</D:href>
<D:propstat>
<D:prop>
</D:prop>
<D:status>HTTP/1.1 403 Forbidden</D:status>
</D:propstat>
</D:response>`, html.EscapeString(r.URL.Path))

	writeMultistatus(w, body)
	return nil
}
