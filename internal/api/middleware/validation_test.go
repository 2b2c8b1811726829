package middleware

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeAllowed(t *testing.T) {
	allowed := []string{"video/*", "image/*", "application/octet-stream"}

	tests := []struct {
		detected string
		want     bool
	}{
		{"video/mp4", true},
		{"video/webm", true},
		{"image/png", true},
		{"application/octet-stream", true},
		{"text/html; charset=utf-8", false},
		{"application/pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.detected, func(t *testing.T) {
			assert.Equal(t, tt.want, typeAllowed(tt.detected, allowed))
		})
	}
}

func multipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	r := httptest.NewRequest("POST", "/api/v1/library/upload", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func TestValidateFileUpload(t *testing.T) {
	config := FileValidationConfig{
		MaxSize:      1024,
		AllowedTypes: []string{"image/*", "application/octet-stream"},
		AllowedExts:  []string{".png", ".mp4"},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ValidateFileUpload(config)(next)

	// Minimal valid PNG header so content sniffing resolves to image/png.
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

	t.Run("valid file passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, multipartRequest(t, "logo.png", pngHeader))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disallowed extension rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, multipartRequest(t, "page.html", pngHeader))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversize file rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, multipartRequest(t, "big.png", bytes.Repeat(pngHeader, 200)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("sniffed type overrides filename", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, multipartRequest(t, "fake.png", []byte("<html><body>not an image</body></html>")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-multipart request passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/v1/library", bytes.NewBufferString(`{"data":"abc"}`))
		r.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
