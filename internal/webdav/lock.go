package webdav

import (
	"fmt"
	"html"
	"net/http"

	"github.com/google/uuid"
)

// handleLock returns a synthetic opaque lock token without any real
// mutual exclusion, grounded in original_source/webdav_server.rs's
// handle_lock (§4.3 LOCK/UNLOCK row).
func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) error {
	token := "opaquelocktoken:" + uuid.NewString()
	w.Header().Set("Lock-Token", "<"+token+">")
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>
<D:prop xmlns:D="DAV:"><D:lockdiscovery><D:activelock>
<D:locktype><D:write/></D:locktype>
<D:lockscope><D:exclusive/></D:lockscope>
<D:depth>infinity</D:depth>
<D:locktoken><D:href>%s</D:href></D:locktoken>
<D:lockroot><D:href>%s</D:href></D:lockroot>
</D:activelock></D:lockdiscovery></D:prop>`, token, html.EscapeString(r.URL.Path))
	return nil
}

// handleUnlock always succeeds: there is no real lock table to consult.
func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(http.StatusOK)
	return nil
}

// handleOptions emits the fixed DAV/Allow headers of §4.3's OPTIONS row.
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("DAV", "1,2")
	w.Header().Set("Allow", "GET,HEAD,PUT,OPTIONS,DELETE,PROPFIND,COPY,MOVE")
	w.WriteHeader(http.StatusOK)
}
