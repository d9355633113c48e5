package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/makeasinger/autoedit/internal/assets"
	"github.com/makeasinger/autoedit/internal/client"
	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/history"
	"github.com/makeasinger/autoedit/internal/model"
)

// ErrUnsupportedMedia is returned for uploads that do not probe as video.
var ErrUnsupportedMedia = errors.New("unsupported media")

// Prober reads stream metadata from a local file.
type Prober interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// AssetService registers source media and exposes version history.
type AssetService struct {
	assets  *assets.Store
	history *history.Store
	storage client.StorageClient
	prober  Prober
	tempDir string
}

// NewAssetService creates an asset service. A nil prober accepts uploads
// without reading their metadata.
func NewAssetService(store *assets.Store, hist *history.Store, storage client.StorageClient, prober Prober, tempDir string) *AssetService {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &AssetService{
		assets:  store,
		history: hist,
		storage: storage,
		prober:  prober,
		tempDir: tempDir,
	}
}

// Register records media that is already reachable by reference.
func (s *AssetService) Register(ctx context.Context, req *model.RegisterAssetRequest) (*model.Asset, error) {
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	a := &model.Asset{
		ID:                id,
		SourceRef:         req.SourceRef,
		DurationSeconds:   req.DurationSeconds,
		Transcript:        req.Transcript,
		AudioLevelSamples: req.AudioLevelSamples,
		Width:             req.Width,
		Height:            req.Height,
		Status:            model.AssetStatusReady,
	}
	if err := s.assets.Put(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to register asset: %w", err)
	}
	return s.assets.Get(ctx, id)
}

// Upload stores a new source video and registers it.
func (s *AssetService) Upload(ctx context.Context, filename, transcript string, file io.Reader) (*model.Asset, error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}

	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.tempDir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	a := &model.Asset{
		ID:         id,
		Transcript: transcript,
		Status:     model.AssetStatusReady,
	}
	if s.prober != nil {
		info, err := s.prober.ProbeVideo(ctx, tmp.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
		}
		a.DurationSeconds = info.DurationSeconds
		a.Width = info.Width
		a.Height = info.Height
	}

	key := fmt.Sprintf("uploads/%s/source%s", id, ext)
	if _, err := s.storage.Upload(ctx, tmp.Name(), key, client.ContentType(key)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	a.SourceRef = key

	if err := s.assets.Put(ctx, a); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, fmt.Errorf("failed to register asset: %w", err)
	}
	return s.assets.Get(ctx, id)
}

// Get returns one asset.
func (s *AssetService) Get(ctx context.Context, id string) (*model.Asset, error) {
	return s.assets.Get(ctx, id)
}

// Exists reports whether an asset is registered.
func (s *AssetService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.assets.Get(ctx, id)
	if errors.Is(err, assets.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Versions lists the retained renders of an asset, newest first.
func (s *AssetService) Versions(ctx context.Context, assetID string) (*model.VersionsResponse, error) {
	if _, err := s.assets.Get(ctx, assetID); err != nil {
		return nil, err
	}
	versions, err := s.history.Versions(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return &model.VersionsResponse{AssetID: assetID, Versions: versions}, nil
}

// Restore points the asset back at a stored version.
func (s *AssetService) Restore(ctx context.Context, assetID, versionID string) (*model.RestoreResponse, error) {
	ref, err := s.history.Restore(ctx, s.assets, assetID, versionID)
	if err != nil {
		return nil, err
	}
	return &model.RestoreResponse{AssetID: assetID, VersionID: versionID, SourceRef: ref}, nil
}

// History lists the cuts recorded for an asset.
func (s *AssetService) History(ctx context.Context, assetID string) (*model.HistoryResponse, error) {
	if _, err := s.assets.Get(ctx, assetID); err != nil {
		return nil, err
	}
	entries, err := s.history.History(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return &model.HistoryResponse{AssetID: assetID, Entries: entries}, nil
}
