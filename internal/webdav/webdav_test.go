package webdav

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolaspernoud/vestibule/internal/config"
)

func newTestHandler(t *testing.T, writable, allowSymlinks bool) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	h, err := New(config.Dav{
		ID:            "test",
		Directory:     dir,
		Writable:      writable,
		AllowSymlinks: allowSymlinks,
	})
	require.NoError(t, err)
	return h, dir
}

func TestResolvePathRejectsEscape(t *testing.T) {
	h, _ := newTestHandler(t, false, false)
	_, err := h.resolvePath("/../../etc/passwd")
	assert.Error(t, err)
}

func TestResolvePathAllowsNested(t *testing.T) {
	h, dir := newTestHandler(t, false, false)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	path, err := h.resolvePath("/a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a", "b"), path)
}

func TestResolvePathEscapesViaSymlinkDenied(t *testing.T) {
	h, dir := newTestHandler(t, false, false)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))
	_, err := h.resolvePath("/link")
	assert.Error(t, err)
}

func TestResolvePathEscapesViaSymlinkAllowed(t *testing.T) {
	h, dir := newTestHandler(t, false, true)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))
	path, err := h.resolvePath("/link")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "link"), path)
}

func TestPutRequiresWritable(t *testing.T) {
	h, _ := newTestHandler(t, false, false)
	r := httptest.NewRequest(http.MethodPut, "/file.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, true, false)

	body := []byte("hello vestibule")
	r := httptest.NewRequest(http.MethodPut, "/file.txt", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/file.txt", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.Bytes())
}

func TestPutThenEncryptedGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h, err := New(config.Dav{ID: "test", Directory: dir, Writable: true, Key: make([]byte, 32)})
	require.NoError(t, err)
	require.True(t, h.Encrypted())

	body := []byte("secret payload")
	r := httptest.NewRequest(http.MethodPut, "/secret.txt", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	onDisk, err := os.ReadFile(filepath.Join(dir, "secret.txt"))
	require.NoError(t, err)
	assert.NotEqual(t, body, onDisk)

	r = httptest.NewRequest(http.MethodGet, "/secret.txt", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.Bytes())
}

func TestDeleteRequiresWritable(t *testing.T) {
	h, dir := newTestHandler(t, false, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	r := httptest.NewRequest(http.MethodDelete, "/f.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMkcolRejectsExisting(t *testing.T) {
	h, dir := newTestHandler(t, true, false)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "existing"), 0o755))
	r := httptest.NewRequest("MKCOL", "/existing", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProppatchAlwaysForbidden(t *testing.T) {
	h, dir := newTestHandler(t, true, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	r := httptest.NewRequest("PROPPATCH", "/f.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "403 Forbidden")
}

func TestLockReturnsOpaqueToken(t *testing.T) {
	h, _ := newTestHandler(t, true, false)
	r := httptest.NewRequest("LOCK", "/f.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Lock-Token"), "opaquelocktoken:")
}

func TestOptionsFixedHeaders(t *testing.T) {
	h, _ := newTestHandler(t, true, false)
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "1,2", w.Header().Get("DAV"))
	assert.Equal(t, "GET,HEAD,PUT,OPTIONS,DELETE,PROPFIND,COPY,MOVE", w.Header().Get("Allow"))
}

func TestPropfindListsChildren(t *testing.T) {
	h, dir := newTestHandler(t, true, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	r := httptest.NewRequest("PROPFIND", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "a.txt")
}

func TestSearchFindsMatchCaseInsensitive(t *testing.T) {
	h, dir := newTestHandler(t, true, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Report.TXT"), []byte("x"), 0o644))
	r := httptest.NewRequest(http.MethodGet, "/?q=report", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Report.TXT")
}
