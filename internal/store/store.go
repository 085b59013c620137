// Package store provides repository-style persistence for jobs, videos, and
// derived artifacts. The Redis implementation is the production store; the
// memory implementation backs tests and local development.
package store

import (
	"context"
	"errors"

	"github.com/clipforge/api/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// JobStore persists job records. Pure data access: state-machine policy lives
// in the service layer.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	ListJobsByVideo(ctx context.Context, videoID int64) ([]*model.Job, error)
}

// VideoStore persists source video records. CreateVideo assigns the ID.
type VideoStore interface {
	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideo(ctx context.Context, videoID int64) (*model.Video, error)
	UpdateVideo(ctx context.Context, video *model.Video) error
	ListVideos(ctx context.Context, offset, limit int64) ([]*model.Video, int64, error)
}

// DerivedStore persists artifacts produced by jobs: trimmed clips, overlays,
// and watermarks. Create methods assign IDs.
type DerivedStore interface {
	CreateTrimmedVideo(ctx context.Context, tv *model.TrimmedVideo) error
	GetTrimmedVideo(ctx context.Context, id int64) (*model.TrimmedVideo, error)
	ListTrimmedByVideo(ctx context.Context, videoID int64) ([]*model.TrimmedVideo, error)
	CreateOverlay(ctx context.Context, o *model.Overlay) error
	ListOverlaysByVideo(ctx context.Context, videoID int64) ([]*model.Overlay, error)
	CreateWatermark(ctx context.Context, w *model.Watermark) error
	ListWatermarksByVideo(ctx context.Context, videoID int64) ([]*model.Watermark, error)
}

// VariantStore persists quality renditions keyed by (videoID, quality).
type VariantStore interface {
	// ReserveVariant ensures a row exists for the natural key and is flagged
	// processing, creating a placeholder if needed. It never duplicates a row:
	// a concurrent or repeated reservation flags the existing row in place.
	ReserveVariant(ctx context.Context, v *model.Variant) (*model.Variant, error)
	GetVariant(ctx context.Context, videoID int64, quality model.VideoQuality) (*model.Variant, error)
	// UpdateVariant overwrites the row for the variant's natural key.
	UpdateVariant(ctx context.Context, v *model.Variant) error
	ListVariantsByVideo(ctx context.Context, videoID int64) ([]*model.Variant, error)
}

// Store aggregates every repository the service layer needs.
type Store interface {
	JobStore
	VideoStore
	DerivedStore
	VariantStore
}
