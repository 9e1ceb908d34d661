package webdav

import (
	"net/http"

	"github.com/nicolaspernoud/vestibule/internal/verrors"
)

// ServeHTTP dispatches by method per spec §4.3's verb table. The
// caller (internal/router) has already authorized the request; it
// passes r.URL.Path through unchanged.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		err = h.handleGet(w, r, r.Method == http.MethodHead)
	case http.MethodPut:
		err = h.handlePut(w, r)
	case http.MethodDelete:
		err = h.handleDelete(w, r)
	case "MKCOL":
		err = h.handleMkcol(w, r)
	case "COPY":
		err = h.handleCopy(w, r)
	case "MOVE":
		err = h.handleMove(w, r)
	case "PROPFIND":
		err = h.handlePropfind(w, r)
	case "PROPPATCH":
		err = h.handleProppatch(w, r)
	case "LOCK":
		err = h.handleLock(w, r)
	case "UNLOCK":
		err = h.handleUnlock(w, r)
	case http.MethodOptions:
		h.handleOptions(w, r)
		return
	default:
		err = verrors.Newf(verrors.BadRequest, "method not supported")
	}
	if err != nil {
		verrors.WriteHTTP(w, err)
	}
}
