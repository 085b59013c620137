package model

import "fmt"

// Job types
type JobType string

const (
	JobTypeUploadProcess     JobType = "upload_process"
	JobTypeTrim              JobType = "trim"
	JobTypeTextOverlay       JobType = "text_overlay"
	JobTypeImageOverlay      JobType = "image_overlay"
	JobTypeVideoOverlay      JobType = "video_overlay"
	JobTypeWatermark         JobType = "watermark"
	JobTypeQualityConversion JobType = "quality_conversion"
)

var ValidJobTypes = []JobType{
	JobTypeUploadProcess, JobTypeTrim, JobTypeTextOverlay, JobTypeImageOverlay,
	JobTypeVideoOverlay, JobTypeWatermark, JobTypeQualityConversion,
}

// ParseJobType maps a stored string back to a JobType, rejecting unknown values.
func ParseJobType(s string) (JobType, error) {
	for _, t := range ValidJobTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var ValidJobStatuses = []JobStatus{
	JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed,
}

// ParseJobStatus maps a stored string back to a JobStatus, rejecting unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	for _, st := range ValidJobStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Terminal reports whether no further transitions leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether the state machine permits moving to next.
// The only legal transitions are pending→processing and
// processing→{completed,failed}.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Video qualities
type VideoQuality string

const (
	Quality1080p VideoQuality = "1080p"
	Quality720p  VideoQuality = "720p"
	Quality480p  VideoQuality = "480p"
	Quality360p  VideoQuality = "360p"
)

var ValidQualities = []VideoQuality{Quality1080p, Quality720p, Quality480p, Quality360p}

// ParseQuality maps a stored string back to a VideoQuality, rejecting unknown values.
func ParseQuality(s string) (VideoQuality, error) {
	for _, q := range ValidQualities {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

// QualitySettings holds the fixed encode parameters for one rendition quality.
type QualitySettings struct {
	Width   int
	Height  int
	Bitrate string
}

var qualitySettings = map[VideoQuality]QualitySettings{
	Quality1080p: {Width: 1920, Height: 1080, Bitrate: "5000k"},
	Quality720p:  {Width: 1280, Height: 720, Bitrate: "3000k"},
	Quality480p:  {Width: 854, Height: 480, Bitrate: "1500k"},
	Quality360p:  {Width: 640, Height: 360, Bitrate: "800k"},
}

// SettingsForQuality returns the encode parameters for a quality. Unrecognized
// quality strings fall back to the 720p settings.
func SettingsForQuality(q VideoQuality) QualitySettings {
	if s, ok := qualitySettings[q]; ok {
		return s
	}
	return qualitySettings[Quality720p]
}

// Overlay types
type OverlayType string

const (
	OverlayText  OverlayType = "text"
	OverlayImage OverlayType = "image"
	OverlayVideo OverlayType = "video"
)
