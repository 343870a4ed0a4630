package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/silvercare/nas-gateway/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuditor struct {
	flushed chan struct{}
}

func (s *stubAuditor) Flush(ctx context.Context) error {
	s.flushed <- struct{}{}
	return nil
}

func (s *stubAuditor) GetMetrics() string {
	return `{"recorded": 0}`
}

// fakeNAS answers uploads and deletes like a Synology web endpoint
func fakeNAS(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch r.Method {
		case http.MethodPost:
			_, header, err := r.FormFile("file")
			if err != nil {
				w.Write([]byte(`{"error":"no file"}`))
				return
			}
			w.Write([]byte(`{"uploaded":"` + header.Filename + `"}`))
		case http.MethodDelete:
			w.Write([]byte(`{"deleted":"` + r.URL.Path + `"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRouter(t *testing.T, nasStatus int) (http.Handler, *stubAuditor) {
	t.Helper()
	nas := fakeNAS(t, nasStatus)
	gw := gateway.New(gateway.StoreConfig{BaseURL: nas.URL, PathPrefix: "/images", Username: "u", Password: "p"})
	auditor := &stubAuditor{flushed: make(chan struct{}, 1)}
	return NewHandler(gw, auditor, 1024).Router(), auditor
}

func multipartBody(t *testing.T, field, filename string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range extra {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMetrics(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"recorded": 0}`, rec.Body.String())
}

func TestResolve(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/urls/rooms/201.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rooms/201.jpg", body["name"])
	assert.Contains(t, body["url"], "/images/rooms/201.jpg")
}

func TestRedirect(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/hero.jpg", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/images/hero.jpg")
}

func TestRedirect_NameEndingInURL(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/gallery/url", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Location"), "/images/gallery/url"))
}

func TestResolve_InvalidName(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/urls/rooms%5Cbed.png", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	body, contentType := multipartBody(t, "file", "garden.jpg", []byte("jpeg"), nil)
	req := httptest.NewRequest(http.MethodPost, "/assets", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"uploaded":"garden.jpg"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestUpload_NameOverride(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	body, contentType := multipartBody(t, "file", "IMG_0001.jpg", []byte("jpeg"), map[string]string{"name": "staff-kim.jpg"})
	req := httptest.NewRequest(http.MethodPost, "/assets", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"uploaded":"staff-kim.jpg"}`, rec.Body.String())
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name      string
		nasStatus int
		field     string
		filename  string
		content   []byte
		expected  int
	}{
		{name: "Missing file field", nasStatus: http.StatusOK, field: "image", filename: "a.jpg", content: []byte("x"), expected: http.StatusBadRequest},
		{name: "Too large", nasStatus: http.StatusOK, field: "file", filename: "a.jpg", content: bytes.Repeat([]byte("x"), 4096), expected: http.StatusBadRequest},
		{name: "Traversal name", nasStatus: http.StatusOK, field: "file", filename: "..", content: []byte("x"), expected: http.StatusBadRequest},
		{name: "Store failure", nasStatus: http.StatusInternalServerError, field: "file", filename: "a.jpg", content: []byte("x"), expected: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, tt.nasStatus)

			body, contentType := multipartBody(t, tt.field, tt.filename, tt.content, nil)
			req := httptest.NewRequest(http.MethodPost, "/assets", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestDelete(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/assets/old.jpg", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"deleted":"/delete/old.jpg"}`, rec.Body.String())
}

func TestDelete_StoreFailureExposesStatus(t *testing.T) {
	router, _ := newTestRouter(t, http.StatusUnauthorized)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/assets/old.jpg", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.Contains(t, body.Error, "status 401")
}

func TestFlushTrigger(t *testing.T) {
	router, auditor := newTestRouter(t, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/audit/flush", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-auditor.flushed
}
