// Package media wraps the external transformation tooling. The orchestration
// layer only sees the Transformer interface; ffmpeg is an implementation
// detail behind it.
package media

import (
	"context"

	"github.com/clipforge/api/internal/model"
)

// TextOverlayParams carries the literal content and font settings of a text
// overlay, plus its position and timing window.
type TextOverlayParams struct {
	Content    string
	X, Y       int
	StartTime  float64
	EndTime    *float64
	FontSize   int
	FontColor  string
	FontFamily string
}

// FileOverlayParams carries position and timing for an image or video overlay.
type FileOverlayParams struct {
	OverlayPath string
	X, Y        int
	StartTime   float64
	EndTime     *float64
}

// WatermarkParams carries position, opacity, and scale for a watermark image.
type WatermarkParams struct {
	WatermarkPath string
	X, Y          int
	Opacity       float64
	Scale         float64
}

// Transformer is the media transformation capability. Each method reads the
// input file, writes the output file, and returns an error on failure; it
// never touches the store.
type Transformer interface {
	Probe(ctx context.Context, inputPath string) (*model.VideoMetadata, error)
	Trim(ctx context.Context, inputPath, outputPath string, startTime, endTime float64) error
	TextOverlay(ctx context.Context, inputPath, outputPath string, p TextOverlayParams) error
	FileOverlay(ctx context.Context, inputPath, outputPath string, p FileOverlayParams) error
	Watermark(ctx context.Context, inputPath, outputPath string, p WatermarkParams) error
	ConvertQuality(ctx context.Context, inputPath, outputPath string, s model.QualitySettings) error
}
