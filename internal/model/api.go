package model

import "time"

// TrimRequest is the body for POST /async/trim.
type TrimRequest struct {
	VideoID   int64   `json:"videoId" validate:"required,min=1"`
	StartTime float64 `json:"startTime" validate:"min=0"`
	EndTime   float64 `json:"endTime" validate:"required,gtfield=StartTime"`
}

// TextOverlayRequest is the body for POST /async/overlays/text.
type TextOverlayRequest struct {
	VideoID    int64    `json:"videoId" validate:"required,min=1"`
	Content    string   `json:"content" validate:"required"`
	XPosition  int      `json:"xPosition" validate:"min=0"`
	YPosition  int      `json:"yPosition" validate:"min=0"`
	StartTime  float64  `json:"startTime" validate:"min=0"`
	EndTime    *float64 `json:"endTime" validate:"omitempty,gt=0"`
	FontSize   int      `json:"fontSize" validate:"omitempty,min=1,max=500"`
	FontColor  string   `json:"fontColor"`
	FontFamily string   `json:"fontFamily"`
}

// QualityConversionRequest is the body for POST /qualities/convert. Unknown
// quality strings are rejected here, before any job row is created.
type QualityConversionRequest struct {
	VideoID   int64    `json:"videoId" validate:"required,min=1"`
	Qualities []string `json:"qualities" validate:"required,min=1,dive,oneof=1080p 720p 480p 360p"`
}

// JobSubmitResponse is returned by every async submission endpoint.
type JobSubmitResponse struct {
	JobID   string `json:"jobId"`
	VideoID int64  `json:"videoId,omitempty"`
	Message string `json:"message"`
}

// JobStatusResponse maps a job's stored status to the client-visible payload.
type JobStatusResponse struct {
	JobID              string    `json:"jobId"`
	Status             JobStatus `json:"status"`
	ProgressPercentage int       `json:"progressPercentage"`
	Message            string    `json:"message"`
}

// JobResultResponse is returned by GET /result/:jobId when no downloadable
// artifact applies. Result carries the job's structured payload once completed.
type JobResultResponse struct {
	JobID   string      `json:"jobId"`
	Status  JobStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// VideoResponse is the client view of a stored video.
type VideoResponse struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	Duration         *float64  `json:"duration"`
	FileSize         *int64    `json:"fileSize"`
	Width            *int      `json:"width"`
	Height           *int      `json:"height"`
	FPS              *float64  `json:"fps"`
	UploadTime       time.Time `json:"uploadTime"`
	IsProcessed      bool      `json:"isProcessed"`
}

// VideoListResponse is the paginated list of uploaded videos.
type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
	Total  int64           `json:"total"`
}

// VariantResponse is the client view of a quality rendition.
type VariantResponse struct {
	ID           int64        `json:"id"`
	Quality      VideoQuality `json:"quality"`
	Filename     string       `json:"filename"`
	FileSize     *int64       `json:"fileSize"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	Bitrate      string       `json:"bitrate,omitempty"`
	IsProcessing bool         `json:"isProcessing"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// NewVideoResponse converts a stored video row to its client view.
func NewVideoResponse(v *Video) VideoResponse {
	return VideoResponse{
		ID:               v.ID,
		Filename:         v.Filename,
		OriginalFilename: v.OriginalFilename,
		Duration:         v.Duration,
		FileSize:         v.FileSize,
		Width:            v.Width,
		Height:           v.Height,
		FPS:              v.FPS,
		UploadTime:       v.UploadTime,
		IsProcessed:      v.IsProcessed,
	}
}

// NewVariantResponse converts a stored variant row to its client view.
func NewVariantResponse(v *Variant) VariantResponse {
	return VariantResponse{
		ID:           v.ID,
		Quality:      v.Quality,
		Filename:     v.Filename,
		FileSize:     v.FileSize,
		Width:        v.Width,
		Height:       v.Height,
		Bitrate:      v.Bitrate,
		IsProcessing: v.IsProcessing,
		CreatedAt:    v.CreatedAt,
	}
}
