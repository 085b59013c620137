package model

import "time"

// Video represents an uploaded source video. FilePath points at the current
// artifact: overlay and watermark jobs re-point it at the newly composited
// file, so later transforms compose onto the accumulated result.
type Video struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	Duration         *float64  `json:"duration,omitempty"`
	FileSize         *int64    `json:"fileSize,omitempty"`
	Width            *int      `json:"width,omitempty"`
	Height           *int      `json:"height,omitempty"`
	FPS              *float64  `json:"fps,omitempty"`
	UploadTime       time.Time `json:"uploadTime"`
	FilePath         string    `json:"filePath"`
	IsProcessed      bool      `json:"isProcessed"`
}

// VideoMetadata is the probe snapshot extracted from a media file.
type VideoMetadata struct {
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

// TrimmedVideo is a derived clip cut from a source video.
type TrimmedVideo struct {
	ID              int64     `json:"id"`
	OriginalVideoID int64     `json:"originalVideoId"`
	Filename        string    `json:"filename"`
	StartTime       float64   `json:"startTime"`
	EndTime         float64   `json:"endTime"`
	Duration        float64   `json:"duration"`
	FileSize        *int64    `json:"fileSize,omitempty"`
	FilePath        string    `json:"filePath"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Overlay records a text, image, or video overlay baked into a source video.
type Overlay struct {
	ID          int64       `json:"id"`
	VideoID     int64       `json:"videoId"`
	OverlayType OverlayType `json:"overlayType"`
	Content     string      `json:"content,omitempty"`
	FilePath    string      `json:"filePath,omitempty"`
	XPosition   int         `json:"xPosition"`
	YPosition   int         `json:"yPosition"`
	StartTime   float64     `json:"startTime"`
	EndTime     *float64    `json:"endTime,omitempty"`
	FontSize    int         `json:"fontSize,omitempty"`
	FontColor   string      `json:"fontColor,omitempty"`
	FontFamily  string      `json:"fontFamily,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Watermark records a watermark image baked into a source video.
type Watermark struct {
	ID            int64     `json:"id"`
	VideoID       int64     `json:"videoId"`
	WatermarkPath string    `json:"watermarkPath"`
	XPosition     int       `json:"xPosition"`
	YPosition     int       `json:"yPosition"`
	Opacity       float64   `json:"opacity"`
	Scale         float64   `json:"scale"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Variant is a quality-specific rendition of a source video. The
// (OriginalVideoID, Quality) pair is a natural key: at most one row exists per
// pair. A row with IsProcessing set is a placeholder reserved at submission
// time, before the rendition exists.
type Variant struct {
	ID              int64        `json:"id"`
	OriginalVideoID int64        `json:"originalVideoId"`
	Quality         VideoQuality `json:"quality"`
	Filename        string       `json:"filename"`
	FilePath        string       `json:"filePath"`
	FileSize        *int64       `json:"fileSize,omitempty"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	Bitrate         string       `json:"bitrate,omitempty"`
	IsProcessing    bool         `json:"isProcessing"`
	CreatedAt       time.Time    `json:"createdAt"`
}
