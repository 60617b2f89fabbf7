package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUI() fstest.MapFS {
	return fstest.MapFS{
		"index.html":           {Data: []byte("<html>sekkei</html>")},
		"assets/app-abc123.js": {Data: []byte("console.log('hi')")},
		"favicon.ico":          {Data: []byte{0x00}},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSPAServesIndexAtRoot(t *testing.T) {
	h := newSPAHandler(testUI())
	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sekkei")
}

func TestSPAFallsBackToIndexForClientRoutes(t *testing.T) {
	h := newSPAHandler(testUI())
	rec := get(t, h, "/transcripts/123")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sekkei")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")
}

func TestSPAServesHashedAssetsImmutable(t *testing.T) {
	h := newSPAHandler(testUI())
	rec := get(t, h, "/assets/app-abc123.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
}

func TestSPAAPIPathsGet404NotIndex(t *testing.T) {
	h := newSPAHandler(testUI())
	for _, path := range []string{"/v1/unknown", "/health", "/openapi.yaml"} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "<html>", path)
	}
}
