package model

import (
	"encoding/json"
	"time"
)

// Job represents one submitted unit of asynchronous work. Rows are append-only:
// created by the dispatcher in pending, mutated only by the worker owning the
// job id, never deleted.
type Job struct {
	ID           string          `json:"id"`
	JobType      JobType         `json:"jobType"`
	Status       JobStatus       `json:"status"`
	VideoID      int64           `json:"videoId"`
	InputData    json.RawMessage `json:"inputData,omitempty"`
	ResultData   json.RawMessage `json:"resultData,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// TrimJobPayload contains the data for a trim job.
type TrimJobPayload struct {
	VideoID   int64   `json:"videoId"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// UploadJobPayload contains the data for an upload-processing job.
type UploadJobPayload struct {
	VideoID  int64  `json:"videoId"`
	FilePath string `json:"filePath"`
}

// OverlayJobPayload contains the data for text, image, and video overlay jobs.
// Content and the font fields are set for text overlays; OverlayFilePath for
// image and video overlays.
type OverlayJobPayload struct {
	OverlayType     OverlayType `json:"overlayType"`
	VideoID         int64       `json:"videoId"`
	Content         string      `json:"content,omitempty"`
	OverlayFilePath string      `json:"overlayFilePath,omitempty"`
	XPosition       int         `json:"xPosition"`
	YPosition       int         `json:"yPosition"`
	StartTime       float64     `json:"startTime"`
	EndTime         *float64    `json:"endTime,omitempty"`
	FontSize        int         `json:"fontSize,omitempty"`
	FontColor       string      `json:"fontColor,omitempty"`
	FontFamily      string      `json:"fontFamily,omitempty"`
}

// WatermarkJobPayload contains the data for a watermark job.
type WatermarkJobPayload struct {
	VideoID       int64   `json:"videoId"`
	WatermarkPath string  `json:"watermarkPath"`
	XPosition     int     `json:"xPosition"`
	YPosition     int     `json:"yPosition"`
	Opacity       float64 `json:"opacity"`
	Scale         float64 `json:"scale"`
}

// QualityJobPayload contains the data for a quality-conversion job.
type QualityJobPayload struct {
	VideoID   int64          `json:"videoId"`
	Qualities []VideoQuality `json:"qualities"`
}

// Result payloads, stored on the job as opaque JSON and returned to clients.

type UploadResult struct {
	VideoID  int64          `json:"videoId"`
	Metadata *VideoMetadata `json:"metadata"`
	Status   string         `json:"status"`
}

type TrimResult struct {
	TrimmedVideoID int64   `json:"trimmedVideoId"`
	Filename       string  `json:"filename"`
	FilePath       string  `json:"filePath"`
	Duration       float64 `json:"duration"`
}

type OverlayResult struct {
	OverlayID   int64       `json:"overlayId"`
	OutputFile  string      `json:"outputFile"`
	OverlayType OverlayType `json:"overlayType"`
}

type WatermarkResult struct {
	WatermarkID int64  `json:"watermarkId"`
	OutputFile  string `json:"outputFile"`
}

// ConversionItem records the outcome for a single quality within a
// quality-conversion job. A failed item carries Error and no VariantID.
type ConversionItem struct {
	Quality   VideoQuality `json:"quality"`
	VariantID int64        `json:"variantId,omitempty"`
	Filename  string       `json:"filename,omitempty"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
}

type QualityConversionResult struct {
	VideoID         int64            `json:"videoId"`
	Conversions     []ConversionItem `json:"conversions"`
	TotalSuccessful int              `json:"totalSuccessful"`
}
