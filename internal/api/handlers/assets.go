package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/middleware"
	"github.com/genmedia/backend/internal/modules/library"
	"github.com/genmedia/backend/internal/modules/pipeline"
)

// AssetHandler handles library asset endpoints
type AssetHandler struct {
	library *library.Service
	logger  *zap.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(svc *library.Service, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{
		library: svc,
		logger:  logger,
	}
}

// SaveAssetRequest stores a base64 payload in the user's library
type SaveAssetRequest struct {
	Data      string `json:"data"`
	AssetType string `json:"asset_type"`
	Prompt    string `json:"prompt,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Source    string `json:"source,omitempty"`
}

// CreateAsset stores a new asset
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req SaveAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	user := middleware.GetUser(r.Context())
	h.logger.Info("Save asset request",
		zap.String("user_id", userID(r)),
		zap.String("asset_type", req.AssetType),
	)

	asset, err := h.library.SaveAsset(r.Context(), library.SaveAssetParams{
		UserID:    user.ID,
		AssetType: req.AssetType,
		Data:      req.Data,
		Prompt:    req.Prompt,
		MimeType:  req.MimeType,
		Source:    req.Source,
	})
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

// UploadAsset stores a new asset from a multipart form. Fields: file,
// asset_type, optional prompt.
func (h *AssetHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	// The validation middleware has already parsed and checked the form.
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "file field is required")
		return
	}
	defer file.Close()

	assetType := r.FormValue("asset_type")
	user := middleware.GetUser(r.Context())

	h.logger.Info("Upload asset request",
		zap.String("user_id", user.ID),
		zap.String("asset_type", assetType),
		zap.Int64("size", header.Size),
	)

	asset, err := h.library.SaveAssetStream(r.Context(), library.SaveAssetParams{
		UserID:    user.ID,
		AssetType: assetType,
		Prompt:    r.FormValue("prompt"),
		MimeType:  header.Header.Get("Content-Type"),
		Source:    "upload",
	}, file)
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

// ListAssets returns the user's assets
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assetType := r.URL.Query().Get("asset_type")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	assets, err := h.library.ListAssets(r.Context(), userID(r), assetType, limit)
	if err != nil {
		h.logger.Error("Failed to list assets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list assets")
		return
	}

	if assets == nil {
		assets = []*library.Asset{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

// GetAsset returns a single asset's metadata
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.library.GetAsset(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

// DownloadAsset streams an asset's bytes
func (h *AssetHandler) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	asset, reader, err := h.library.OpenAsset(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", asset.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.Size, 10))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("Asset download interrupted", zap.String("asset_id", asset.ID), zap.Error(err))
	}
}

// DeleteAsset removes an asset
func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")

	if err := h.library.DeleteAsset(r.Context(), assetID, userID(r)); err != nil {
		h.writeLibraryError(w, err)
		return
	}

	h.logger.Info("Asset deleted", zap.String("asset_id", assetID), zap.String("user_id", userID(r)))
	writeJSON(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}

func (h *AssetHandler) writeLibraryError(w http.ResponseWriter, err error) {
	var invalidType *library.InvalidTypeError
	var decodeErr *pipeline.DecodeError

	switch {
	case errors.Is(err, library.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "asset not found")
	case errors.Is(err, library.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "access denied")
	case errors.As(err, &invalidType):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusBadRequest, "DECODE_FAILED", err.Error())
	default:
		h.logger.Error("Library operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
