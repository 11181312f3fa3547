package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name             string
		body             string
		compressRequest  bool
		acceptEncoding   string
		contentType      string
		wantEncoding     string
		wantBodyContains string
	}{
		{
			name:             "json response compressed",
			body:             `{"name":"Oud"}`,
			acceptEncoding:   "gzip",
			contentType:      "application/json",
			wantEncoding:     "gzip",
			wantBodyContains: `received: {"name":"Oud"}`,
		},
		{
			name:             "html response compressed",
			body:             "hello",
			acceptEncoding:   "gzip, deflate",
			contentType:      "text/html; charset=utf-8",
			wantEncoding:     "gzip",
			wantBodyContains: "received: hello",
		},
		{
			name:             "client does not accept gzip",
			body:             "plain request",
			contentType:      "text/html",
			wantEncoding:     "",
			wantBodyContains: "received: plain request",
		},
		{
			name:             "binary content left alone",
			body:             "png-bytes",
			acceptEncoding:   "gzip",
			contentType:      "image/png",
			wantEncoding:     "",
			wantBodyContains: "received: png-bytes",
		},
		{
			name:             "compressed request body",
			body:             `{"items":[]}`,
			compressRequest:  true,
			acceptEncoding:   "gzip",
			contentType:      "application/json",
			wantEncoding:     "gzip",
			wantBodyContains: `received: {"items":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.body)
			if tt.compressRequest {
				body = gzipBytes(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/test", body)
			req.Header.Set("Content-Type", tt.contentType)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			if tt.compressRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tt.contentType, res.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))

			var reader io.Reader = res.Body
			if res.Header.Get("Content-Encoding") == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				require.NoError(t, err)
				defer gr.Close()
				reader = gr
			}
			got, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Contains(t, string(got), tt.wantBodyContains)
		})
	}
}

func TestGzipMiddleware_InvalidRequestBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("definitely not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Invalid gzip body"}`, w.Body.String())
}
