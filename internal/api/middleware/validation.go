package middleware

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// FileValidationConfig defines file validation rules for multipart uploads
type FileValidationConfig struct {
	MaxSize      int64    // Maximum file size in bytes
	AllowedTypes []string // Allowed MIME types (e.g. "video/mp4", "image/*")
	AllowedExts  []string // Allowed file extensions (e.g. ".mp4", ".png")
}

// AssetUploadValidation covers library asset uploads: video clips, watermark
// images and music tracks.
var AssetUploadValidation = FileValidationConfig{
	MaxSize: 500 * 1024 * 1024,
	AllowedTypes: []string{
		"video/*",
		"image/*",
		"audio/*",
		"application/octet-stream",
	},
	AllowedExts: []string{
		".mp4", ".mov", ".webm", ".mkv",
		".png", ".jpg", ".jpeg", ".webp",
		".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac",
	},
}

// ValidateFileUpload validates uploaded files on multipart requests
func ValidateFileUpload(config FileValidationConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
				next.ServeHTTP(w, r)
				return
			}

			if err := r.ParseMultipartForm(32 << 20); err != nil {
				http.Error(w, "Failed to parse form", http.StatusBadRequest)
				return
			}

			if r.MultipartForm != nil && r.MultipartForm.File != nil {
				for _, fileHeaders := range r.MultipartForm.File {
					for _, fileHeader := range fileHeaders {
						if err := validateFile(fileHeader, config); err != nil {
							http.Error(w, err.Error(), http.StatusBadRequest)
							return
						}
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validateFile validates a single file
func validateFile(fileHeader *multipart.FileHeader, config FileValidationConfig) error {
	if config.MaxSize > 0 && fileHeader.Size > config.MaxSize {
		return fmt.Errorf("file size %d exceeds maximum allowed size %d", fileHeader.Size, config.MaxSize)
	}

	if len(config.AllowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		allowed := false
		for _, allowedExt := range config.AllowedExts {
			if ext == strings.ToLower(allowedExt) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("file extension %s is not allowed", ext)
		}
	}

	if len(config.AllowedTypes) > 0 {
		file, err := fileHeader.Open()
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()

		// Sniff the real content type from the first 512 bytes rather than
		// trusting the client-supplied header.
		buf := make([]byte, 512)
		n, _ := file.Read(buf)
		detected := http.DetectContentType(buf[:n])

		if !typeAllowed(detected, config.AllowedTypes) {
			return fmt.Errorf("file type %s is not allowed", detected)
		}
	}

	return nil
}

func typeAllowed(detected string, allowed []string) bool {
	for _, t := range allowed {
		if t == detected {
			return true
		}
		// Wildcard subtypes like "video/*"
		if strings.HasSuffix(t, "/*") && strings.HasPrefix(detected, strings.TrimSuffix(t, "*")) {
			return true
		}
	}
	return false
}
