package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/modules/pipeline"
	"github.com/genmedia/backend/internal/shared/database"
	"github.com/genmedia/backend/internal/shared/storage"
)

// Asset types accepted by the library
const (
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
)

var (
	// ErrNotFound is returned when an asset does not exist.
	ErrNotFound = errors.New("asset not found")
	// ErrAccessDenied is returned when an asset belongs to another user.
	ErrAccessDenied = errors.New("access denied")
)

// InvalidTypeError marks an unsupported asset type.
type InvalidTypeError struct {
	Type string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid asset type %q", e.Type)
}

// Asset represents a stored library asset
type Asset struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AssetType string    `json:"asset_type"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Prompt    string    `json:"prompt,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveAssetParams contains parameters for saving an asset
type SaveAssetParams struct {
	UserID    string
	AssetType string
	Data      string // base64, optionally data-URI prefixed
	Prompt    string
	MimeType  string
	Source    string // upload or generated
}

// Service stores asset files in the assets zone and their metadata in
// Postgres.
type Service struct {
	db      *database.Postgres
	storage *storage.Service
	logger  *zap.Logger
}

// NewService creates a new library service
func NewService(db *database.Postgres, st *storage.Service, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		storage: st,
		logger:  logger,
	}
}

// resolveTypeMeta picks the extension and default mime type per asset type
func resolveTypeMeta(assetType, mimeType string) (ext, mime string, err error) {
	switch assetType {
	case TypeImage:
		if mimeType == "" {
			mimeType = "image/png"
		}
		if strings.Contains(mimeType, "png") {
			return ".png", mimeType, nil
		}
		return ".jpg", mimeType, nil
	case TypeVideo:
		if mimeType == "" {
			mimeType = "video/mp4"
		}
		return ".mp4", mimeType, nil
	case TypeAudio:
		if mimeType == "" {
			mimeType = "audio/mpeg"
		}
		return ".mp3", mimeType, nil
	default:
		return "", "", &InvalidTypeError{Type: assetType}
	}
}

// SaveAsset decodes and stores an asset, then records its metadata
func (s *Service) SaveAsset(ctx context.Context, params SaveAssetParams) (*Asset, error) {
	ext, mimeType, err := resolveTypeMeta(params.AssetType, params.MimeType)
	if err != nil {
		return nil, err
	}

	data, err := pipeline.CleanBase64(params.Data)
	if err != nil {
		return nil, err
	}

	source := params.Source
	if source == "" {
		source = "upload"
	}

	assetID := uuid.New().String()
	now := time.Now()

	s.logger.Info("Saving library asset",
		zap.String("asset_id", assetID),
		zap.String("user_id", params.UserID),
		zap.String("asset_type", params.AssetType),
		zap.Int("bytes", len(data)),
	)

	info, err := s.storage.Store(ctx, storage.ZoneAssets, assetID+ext, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store asset: %w", err)
	}

	asset := &Asset{
		ID:        assetID,
		UserID:    params.UserID,
		AssetType: params.AssetType,
		Path:      info.Path,
		MimeType:  mimeType,
		Size:      info.Size,
		Prompt:    params.Prompt,
		Source:    source,
		CreatedAt: now,
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO assets (id, user_id, asset_type, storage_path, mime_type, size, prompt, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, asset.ID, asset.UserID, asset.AssetType, asset.Path, asset.MimeType, asset.Size, nullIfEmpty(asset.Prompt), asset.Source, now)
	if err != nil {
		// Keep storage consistent with metadata.
		s.storage.Delete(ctx, info.Path)
		return nil, fmt.Errorf("failed to insert asset: %w", err)
	}

	return asset, nil
}

// SaveAssetStream stores an asset from a reader, for multipart uploads
// that never pass through base64.
func (s *Service) SaveAssetStream(ctx context.Context, params SaveAssetParams, reader io.Reader) (*Asset, error) {
	ext, mimeType, err := resolveTypeMeta(params.AssetType, params.MimeType)
	if err != nil {
		return nil, err
	}

	source := params.Source
	if source == "" {
		source = "upload"
	}

	assetID := uuid.New().String()
	now := time.Now()

	info, err := s.storage.Store(ctx, storage.ZoneAssets, assetID+ext, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to store asset: %w", err)
	}

	asset := &Asset{
		ID:        assetID,
		UserID:    params.UserID,
		AssetType: params.AssetType,
		Path:      info.Path,
		MimeType:  mimeType,
		Size:      info.Size,
		Prompt:    params.Prompt,
		Source:    source,
		CreatedAt: now,
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO assets (id, user_id, asset_type, storage_path, mime_type, size, prompt, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, asset.ID, asset.UserID, asset.AssetType, asset.Path, asset.MimeType, asset.Size, nullIfEmpty(asset.Prompt), asset.Source, now)
	if err != nil {
		s.storage.Delete(ctx, info.Path)
		return nil, fmt.Errorf("failed to insert asset: %w", err)
	}

	return asset, nil
}

// ListAssets returns a user's assets, newest first
func (s *Service) ListAssets(ctx context.Context, userID, assetType string, limit int) ([]*Asset, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, user_id, asset_type, storage_path, mime_type, size, prompt, source, created_at
		FROM assets
		WHERE user_id = $1
		  AND ($2 = '' OR asset_type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, assetType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// GetAsset returns a single asset owned by the user
func (s *Service) GetAsset(ctx context.Context, assetID, userID string) (*Asset, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, asset_type, storage_path, mime_type, size, prompt, source, created_at
		FROM assets WHERE id = $1
	`, assetID)

	asset, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if asset.UserID != userID {
		return nil, ErrAccessDenied
	}

	return asset, nil
}

// OpenAsset returns a reader over the asset's bytes
func (s *Service) OpenAsset(ctx context.Context, assetID, userID string) (*Asset, io.ReadCloser, error) {
	asset, err := s.GetAsset(ctx, assetID, userID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.storage.Retrieve(ctx, asset.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open asset: %w", err)
	}

	return asset, reader, nil
}

// DeleteAsset removes an asset and its stored file
func (s *Service) DeleteAsset(ctx context.Context, assetID, userID string) error {
	asset, err := s.GetAsset(ctx, assetID, userID)
	if err != nil {
		return err
	}

	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, assetID); err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	if err := s.storage.Delete(ctx, asset.Path); err != nil {
		// Metadata is gone; the cleanup sweep catches the orphan file.
		s.logger.Warn("Failed to delete asset file",
			zap.String("asset_id", assetID),
			zap.String("path", asset.Path),
			zap.Error(err),
		)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var asset Asset
	var prompt *string

	err := row.Scan(
		&asset.ID, &asset.UserID, &asset.AssetType, &asset.Path,
		&asset.MimeType, &asset.Size, &prompt, &asset.Source, &asset.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if prompt != nil {
		asset.Prompt = *prompt
	}

	return &asset, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
