package handler

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/pkg/response"
)

const maxUploadSize = 500 * 1024 * 1024 // 500MB

// VideoHandler exposes upload, listing, and download endpoints.
type VideoHandler struct {
	videos    *service.VideoService
	jobs      *service.JobService
	validator *validator.Validate
}

func NewVideoHandler(videos *service.VideoService, jobs *service.JobService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		videos:    videos,
		jobs:      jobs,
		validator: v,
	}
}

// Upload handles POST /upload: synchronous ingest with immediate metadata
// extraction.
func (h *VideoHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File too large", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}
	if !hasContentTypePrefix(file.Header.Get("Content-Type"), "video/") {
		return response.ValidationError(c, "File must be a video", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	video, err := h.videos.IngestSync(c.Context(), file.Filename, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, model.NewVideoResponse(video))
}

// UploadAsync handles POST /async/upload: the file is stored immediately and
// metadata extraction runs as an upload_process job.
func (h *VideoHandler) UploadAsync(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}
	if !hasContentTypePrefix(file.Header.Get("Content-Type"), "video/") {
		return response.ValidationError(c, "File must be a video", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	video, err := h.videos.IngestAsync(c.Context(), file.Filename, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	job, err := h.jobs.SubmitUploadProcess(c.Context(), video.ID, video.FilePath)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.JobSubmitResponse{
		JobID:   job.ID,
		VideoID: video.ID,
		Message: "Video uploaded successfully, processing started",
	})
}

// List handles GET /videos.
func (h *VideoHandler) List(c *fiber.Ctx) error {
	offset := int64(c.QueryInt("skip", 0))
	limit := int64(c.QueryInt("limit", 100))

	result, err := h.videos.ListVideos(c.Context(), offset, limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Get handles GET /videos/:id.
func (h *VideoHandler) Get(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	video, err := h.videos.GetVideo(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, model.NewVideoResponse(video))
}

// Download handles GET /videos/:id/download, streaming the video's current
// artifact.
func (h *VideoHandler) Download(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	video, err := h.videos.GetVideo(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	if _, err := os.Stat(video.FilePath); err != nil {
		return response.NotFound(c, "Video file not found")
	}
	return c.Download(video.FilePath, video.OriginalFilename)
}

// DownloadTrimmed handles GET /trimmed/:id/download.
func (h *VideoHandler) DownloadTrimmed(c *fiber.Ctx) error {
	trimmedID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid trimmed video ID", nil)
	}

	tv, err := h.videos.GetTrimmedVideo(c.Context(), trimmedID)
	if err != nil {
		return serviceError(c, err)
	}
	if _, err := os.Stat(tv.FilePath); err != nil {
		return response.NotFound(c, "Trimmed video file not found")
	}
	return c.Download(tv.FilePath, tv.Filename)
}

// Qualities handles GET /videos/:id/qualities.
func (h *VideoHandler) Qualities(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	variants, err := h.videos.ListQualities(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, variants)
}

// DownloadQuality handles GET /videos/:id/qualities/:quality, streaming a
// finished rendition. A placeholder still being rendered answers 202 so
// clients can poll the same URL until the file lands.
func (h *VideoHandler) DownloadQuality(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}
	quality, err := model.ParseQuality(c.Params("quality"))
	if err != nil {
		return response.ValidationError(c, "Invalid quality", nil)
	}

	video, err := h.videos.GetVideo(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	variant, err := h.videos.GetVariant(c.Context(), videoID, quality)
	if err != nil {
		return serviceError(c, err)
	}
	if variant.IsProcessing {
		return response.Accepted(c, fiber.Map{
			"quality": quality,
			"message": fmt.Sprintf("Quality %s is still being processed", quality),
		})
	}
	if _, err := os.Stat(variant.FilePath); err != nil {
		return response.NotFound(c, "Quality file not found")
	}
	return c.Download(variant.FilePath, fmt.Sprintf("%s_%s", quality, video.OriginalFilename))
}

// QualityInfo handles GET /videos/:id/qualities/:quality/info.
func (h *VideoHandler) QualityInfo(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}
	quality, err := model.ParseQuality(c.Params("quality"))
	if err != nil {
		return response.ValidationError(c, "Invalid quality", nil)
	}

	variant, err := h.videos.GetVariant(c.Context(), videoID, quality)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, model.NewVariantResponse(variant))
}

// Trimmed handles GET /videos/:id/trimmed.
func (h *VideoHandler) Trimmed(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	trimmed, err := h.videos.ListTrimmed(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, trimmed)
}

// Overlays handles GET /videos/:id/overlays.
func (h *VideoHandler) Overlays(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	overlays, err := h.videos.ListOverlays(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, overlays)
}

// Watermarks handles GET /videos/:id/watermarks.
func (h *VideoHandler) Watermarks(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	watermarks, err := h.videos.ListWatermarks(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, watermarks)
}

// Jobs handles GET /videos/:id/jobs: the audit trail of work submitted for a
// video.
func (h *VideoHandler) Jobs(c *fiber.Ctx) error {
	videoID, err := paramInt64(c, "id")
	if err != nil {
		return response.ValidationError(c, "Invalid video ID", nil)
	}

	jobs, err := h.jobs.ListJobsByVideo(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, jobs)
}
