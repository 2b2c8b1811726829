package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/modules/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writePipelineError maps the pipeline error taxonomy onto HTTP statuses.
// Bad requests and bad media are the caller's fault; engine failures and
// timeouts are ours.
func writePipelineError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var inputErr *pipeline.InputError
	var decodeErr *pipeline.DecodeError
	var downloadErr *pipeline.DownloadError
	var timeoutErr *pipeline.TimeoutError
	var execErr *pipeline.ExecutionError

	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusBadRequest, "DECODE_FAILED", err.Error())
	case errors.As(err, &downloadErr):
		writeError(w, http.StatusBadRequest, "DOWNLOAD_FAILED", err.Error())
	case errors.As(err, &timeoutErr):
		logger.Error("Pipeline operation timed out", zap.String("operation", op), zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	case errors.As(err, &execErr):
		logger.Error("Pipeline operation failed", zap.String("operation", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "PROCESSING_ERROR", err.Error())
	default:
		logger.Error("Pipeline operation failed", zap.String("operation", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
