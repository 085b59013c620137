package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/store"
)

// VideoService handles source video ingestion and lookup. The transformation
// work itself always goes through jobs; this service only does thin file I/O
// and row management.
type VideoService struct {
	store       store.Store
	transformer media.Transformer
	storage     config.StorageConfig
}

func NewVideoService(st store.Store, transformer media.Transformer, storage config.StorageConfig) *VideoService {
	return &VideoService{
		store:       st,
		transformer: transformer,
		storage:     storage,
	}
}

// SaveUpload writes an uploaded stream to the uploads directory under a fresh
// unique filename and returns the stored path.
func (s *VideoService) SaveUpload(originalFilename string, r io.Reader) (filename, path string, err error) {
	ext := filepath.Ext(originalFilename)
	filename = uuid.New().String() + ext
	path = filepath.Join(s.storage.UploadDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("write upload file: %w", err)
	}
	return filename, path, nil
}

// IngestSync stores an upload, probes it immediately, and creates a fully
// populated video row. Used by the synchronous upload endpoint.
func (s *VideoService) IngestSync(ctx context.Context, originalFilename string, r io.Reader) (*model.Video, error) {
	filename, path, err := s.SaveUpload(originalFilename, r)
	if err != nil {
		return nil, err
	}

	video := &model.Video{
		Filename:         filename,
		OriginalFilename: originalFilename,
		FilePath:         path,
		UploadTime:       time.Now().UTC(),
	}

	meta, err := s.transformer.Probe(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("probe failed on sync upload")
	} else {
		applyMetadata(video, meta)
	}

	if err := s.store.CreateVideo(ctx, video); err != nil {
		os.Remove(path)
		return nil, err
	}
	return video, nil
}

// IngestAsync stores an upload and creates a bare video row; metadata
// extraction is left to an upload_process job.
func (s *VideoService) IngestAsync(ctx context.Context, originalFilename string, r io.Reader) (*model.Video, error) {
	filename, path, err := s.SaveUpload(originalFilename, r)
	if err != nil {
		return nil, err
	}

	video := &model.Video{
		Filename:         filename,
		OriginalFilename: originalFilename,
		FilePath:         path,
		UploadTime:       time.Now().UTC(),
	}
	if err := s.store.CreateVideo(ctx, video); err != nil {
		os.Remove(path)
		return nil, err
	}
	return video, nil
}

// SaveAttachment writes an overlay or watermark upload into dir under a fresh
// unique filename prefixed for traceability.
func (s *VideoService) SaveAttachment(dir, prefix, originalFilename string, r io.Reader) (string, error) {
	ext := filepath.Ext(originalFilename)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, uuid.New().String(), ext))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write attachment file: %w", err)
	}
	return path, nil
}

func (s *VideoService) GetVideo(ctx context.Context, videoID int64) (*model.Video, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return video, nil
}

func (s *VideoService) ListVideos(ctx context.Context, offset, limit int64) (*model.VideoListResponse, error) {
	videos, total, err := s.store.ListVideos(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	resp := &model.VideoListResponse{Total: total, Videos: make([]model.VideoResponse, 0, len(videos))}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, model.NewVideoResponse(v))
	}
	return resp, nil
}

// GetTrimmedVideo resolves a derived clip for download.
func (s *VideoService) GetTrimmedVideo(ctx context.Context, id int64) (*model.TrimmedVideo, error) {
	tv, err := s.store.GetTrimmedVideo(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return tv, nil
}

// GetVariant resolves a single quality rendition of a video. The caller
// decides what a placeholder row (IsProcessing set) means for its response.
func (s *VideoService) GetVariant(ctx context.Context, videoID int64, quality model.VideoQuality) (*model.Variant, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	v, err := s.store.GetVariant(ctx, videoID, quality)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	return v, nil
}

// ListTrimmed returns every clip cut from a video.
func (s *VideoService) ListTrimmed(ctx context.Context, videoID int64) ([]*model.TrimmedVideo, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.store.ListTrimmedByVideo(ctx, videoID)
}

// ListOverlays returns every overlay baked into a video.
func (s *VideoService) ListOverlays(ctx context.Context, videoID int64) ([]*model.Overlay, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.store.ListOverlaysByVideo(ctx, videoID)
}

// ListWatermarks returns every watermark baked into a video.
func (s *VideoService) ListWatermarks(ctx context.Context, videoID int64) ([]*model.Watermark, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.store.ListWatermarksByVideo(ctx, videoID)
}

// ListQualities returns every variant row for a video, placeholders included.
func (s *VideoService) ListQualities(ctx context.Context, videoID int64) ([]model.VariantResponse, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	variants, err := s.store.ListVariantsByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	out := make([]model.VariantResponse, 0, len(variants))
	for _, v := range variants {
		out = append(out, model.NewVariantResponse(v))
	}
	return out, nil
}

func applyMetadata(video *model.Video, meta *model.VideoMetadata) {
	video.Duration = &meta.Duration
	video.FileSize = &meta.Size
	video.Width = &meta.Width
	video.Height = &meta.Height
	video.FPS = &meta.FPS
	video.IsProcessed = true
}
