package handler

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/pkg/response"
)

// JobHandler exposes the asynchronous submission, status, and result
// endpoints.
type JobHandler struct {
	jobs          *service.JobService
	videos        *service.VideoService
	validator     *validator.Validate
	overlaysDir   string
	watermarksDir string
}

func NewJobHandler(jobs *service.JobService, videos *service.VideoService, v *validator.Validate, overlaysDir, watermarksDir string) *JobHandler {
	return &JobHandler{
		jobs:          jobs,
		videos:        videos,
		validator:     v,
		overlaysDir:   overlaysDir,
		watermarksDir: watermarksDir,
	}
}

// Trim handles POST /async/trim.
func (h *JobHandler) Trim(c *fiber.Ctx) error {
	var req model.TrimRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.jobs.SubmitTrim(c.Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.JobSubmitResponse{
		JobID:   job.ID,
		VideoID: req.VideoID,
		Message: "Video trim job started",
	})
}

// TextOverlay handles POST /async/overlays/text.
func (h *JobHandler) TextOverlay(c *fiber.Ctx) error {
	var req model.TextOverlayRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.jobs.SubmitTextOverlay(c.Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.JobSubmitResponse{
		JobID:   job.ID,
		VideoID: req.VideoID,
		Message: "Text overlay job started",
	})
}

// ImageOverlay handles POST /async/overlays/image (multipart).
func (h *JobHandler) ImageOverlay(c *fiber.Ctx) error {
	return h.fileOverlay(c, model.OverlayImage, "image/")
}

// VideoOverlay handles POST /async/overlays/video (multipart).
func (h *JobHandler) VideoOverlay(c *fiber.Ctx) error {
	return h.fileOverlay(c, model.OverlayVideo, "video/")
}

func (h *JobHandler) fileOverlay(c *fiber.Ctx, overlayType model.OverlayType, contentTypePrefix string) error {
	videoID, err := formInt64(c, "videoId")
	if err != nil {
		return response.ValidationError(c, "videoId is required", nil)
	}
	x := formIntDefault(c, "xPosition", 0)
	y := formIntDefault(c, "yPosition", 0)
	startTime := formFloatDefault(c, "startTime", 0)
	endTime := formFloatOptional(c, "endTime")

	file, err := c.FormFile("overlayFile")
	if err != nil {
		return response.ValidationError(c, "Overlay file is required", nil)
	}
	if !hasContentTypePrefix(file.Header.Get("Content-Type"), contentTypePrefix) {
		return response.ValidationError(c, fmt.Sprintf("Overlay file must be a %s", overlayType), nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open overlay file")
	}
	defer f.Close()

	overlayPath, err := h.videos.SaveAttachment(h.overlaysDir, "overlay", file.Filename, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	job, err := h.jobs.SubmitFileOverlay(c.Context(), overlayType, videoID, overlayPath, x, y, startTime, endTime)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.JobSubmitResponse{
		JobID:   job.ID,
		VideoID: videoID,
		Message: fmt.Sprintf("%s overlay job started", overlayType),
	})
}

// Watermark handles POST /async/watermark (multipart).
func (h *JobHandler) Watermark(c *fiber.Ctx) error {
	videoID, err := formInt64(c, "videoId")
	if err != nil {
		return response.ValidationError(c, "videoId is required", nil)
	}
	x := formIntDefault(c, "xPosition", 10)
	y := formIntDefault(c, "yPosition", 10)
	opacity := formFloatDefault(c, "opacity", 1.0)
	scale := formFloatDefault(c, "scale", 1.0)

	file, err := c.FormFile("watermarkFile")
	if err != nil {
		return response.ValidationError(c, "Watermark file is required", nil)
	}
	if !hasContentTypePrefix(file.Header.Get("Content-Type"), "image/") {
		return response.ValidationError(c, "Watermark file must be an image", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open watermark file")
	}
	defer f.Close()

	watermarkPath, err := h.videos.SaveAttachment(h.watermarksDir, "watermark", file.Filename, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	job, err := h.jobs.SubmitWatermark(c.Context(), videoID, watermarkPath, x, y, opacity, scale)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.JobSubmitResponse{
		JobID:   job.ID,
		VideoID: videoID,
		Message: "Watermark job started",
	})
}

// QualityConvert handles POST /qualities/convert.
func (h *JobHandler) QualityConvert(c *fiber.Ctx) error {
	var req model.QualityConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.jobs.SubmitQualityConversion(c.Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.JobSubmitResponse{
		JobID:   job.ID,
		VideoID: req.VideoID,
		Message: fmt.Sprintf("Quality conversion started for %d variants", len(req.Qualities)),
	})
}

// Status handles GET /status/:jobId.
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.GetStatus(c.Context(), jobID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, result)
}

// Result handles GET /result/:jobId. A completed job whose result references
// a file on disk streams that file; everything else gets the structured
// payload.
func (h *JobHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.GetResult(c.Context(), jobID)
	if err != nil {
		return serviceError(c, err)
	}
	if result.FilePath != "" {
		return c.Download(result.FilePath, result.Filename)
	}
	return response.OK(c, result.Response)
}

// Form helpers. Fiber exposes form values as strings only.

func formInt64(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.FormValue(name), 10, 64)
}

func formIntDefault(c *fiber.Ctx, name string, def int) int {
	v, err := strconv.Atoi(c.FormValue(name))
	if err != nil {
		return def
	}
	return v
}

func formFloatDefault(c *fiber.Ctx, name string, def float64) float64 {
	v, err := strconv.ParseFloat(c.FormValue(name), 64)
	if err != nil {
		return def
	}
	return v
}

func formFloatOptional(c *fiber.Ctx, name string) *float64 {
	v, err := strconv.ParseFloat(c.FormValue(name), 64)
	if err != nil {
		return nil
	}
	return &v
}

func hasContentTypePrefix(contentType, prefix string) bool {
	return len(contentType) >= len(prefix) && contentType[:len(prefix)] == prefix
}
