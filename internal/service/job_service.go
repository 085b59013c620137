package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/notify"
	"github.com/clipforge/api/internal/store"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrVideoNotFound    = errors.New("video not found")
	ErrVariantNotFound  = errors.New("quality variant not found")
	ErrInvalidTimeRange = errors.New("invalid timestamps")
	// ErrJobTerminal signals a redelivered task for a job already in a
	// terminal state. The check is side-effect-free so it is safe to repeat.
	ErrJobTerminal = errors.New("job already in terminal state")
)

// JobService is the dispatcher and state-machine owner: it creates job rows,
// hands work to the queue, applies status transitions, and answers
// status/result queries.
type JobService struct {
	store    store.Store
	enqueuer TaskEnqueuer
	notifier *notify.Notifier
	storage  config.StorageConfig
}

func NewJobService(st store.Store, enqueuer TaskEnqueuer, notifier *notify.Notifier, storage config.StorageConfig) *JobService {
	return &JobService{
		store:    st,
		enqueuer: enqueuer,
		notifier: notifier,
		storage:  storage,
	}
}

// dispatch persists a new pending job row and enqueues exactly one task
// correlated by the job id. If creating the row fails nothing is enqueued.
// If enqueueing fails the pending row is left behind: a detectable leak for
// an external reaper, not retried here.
func (s *JobService) dispatch(ctx context.Context, jobType model.JobType, videoID int64, payload interface{}) (*model.Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		JobType:   jobType,
		Status:    model.JobStatusPending,
		VideoID:   videoID,
		InputData: payloadBytes,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	s.publish(ctx, job.ID, job.Status)

	task, err := newJobTask(jobType, job.ID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	_, err = s.enqueuer.Enqueue(task,
		asynq.TaskID(job.ID),
		asynq.Queue(QueueVideoProcessing),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Str("jobType", string(jobType)).
			Msg("enqueue failed, job row left pending")
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	log.Info().Str("jobId", job.ID).Str("jobType", string(jobType)).Int64("videoId", videoID).
		Msg("job dispatched")
	return job, nil
}

// SubmitUploadProcess dispatches metadata extraction for a freshly stored file.
func (s *JobService) SubmitUploadProcess(ctx context.Context, videoID int64, filePath string) (*model.Job, error) {
	return s.dispatch(ctx, model.JobTypeUploadProcess, videoID, &model.UploadJobPayload{
		VideoID:  videoID,
		FilePath: filePath,
	})
}

// SubmitTrim validates the time range against the source video and dispatches
// a trim job. All input errors reject synchronously, before any job row.
func (s *JobService) SubmitTrim(ctx context.Context, req *model.TrimRequest) (*model.Job, error) {
	video, err := s.getVideo(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}
	if req.StartTime < 0 || req.EndTime <= req.StartTime {
		return nil, ErrInvalidTimeRange
	}
	if video.Duration != nil && req.EndTime > *video.Duration {
		return nil, fmt.Errorf("%w: end time exceeds video duration", ErrInvalidTimeRange)
	}

	return s.dispatch(ctx, model.JobTypeTrim, req.VideoID, &model.TrimJobPayload{
		VideoID:   req.VideoID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
}

// SubmitTextOverlay dispatches a text overlay job.
func (s *JobService) SubmitTextOverlay(ctx context.Context, req *model.TextOverlayRequest) (*model.Job, error) {
	if _, err := s.getVideo(ctx, req.VideoID); err != nil {
		return nil, err
	}

	fontSize := req.FontSize
	if fontSize == 0 {
		fontSize = 24
	}
	fontColor := req.FontColor
	if fontColor == "" {
		fontColor = "white"
	}
	fontFamily := req.FontFamily
	if fontFamily == "" {
		fontFamily = "Arial"
	}

	return s.dispatch(ctx, model.JobTypeTextOverlay, req.VideoID, &model.OverlayJobPayload{
		OverlayType: model.OverlayText,
		VideoID:     req.VideoID,
		Content:     req.Content,
		XPosition:   req.XPosition,
		YPosition:   req.YPosition,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		FontSize:    fontSize,
		FontColor:   fontColor,
		FontFamily:  fontFamily,
	})
}

// SubmitFileOverlay dispatches an image or video overlay job. The overlay file
// has already been stored by the handler; overlayPath points at it.
func (s *JobService) SubmitFileOverlay(ctx context.Context, overlayType model.OverlayType, videoID int64, overlayPath string, x, y int, startTime float64, endTime *float64) (*model.Job, error) {
	if _, err := s.getVideo(ctx, videoID); err != nil {
		return nil, err
	}

	jobType := model.JobTypeImageOverlay
	if overlayType == model.OverlayVideo {
		jobType = model.JobTypeVideoOverlay
	}

	return s.dispatch(ctx, jobType, videoID, &model.OverlayJobPayload{
		OverlayType:     overlayType,
		VideoID:         videoID,
		OverlayFilePath: overlayPath,
		XPosition:       x,
		YPosition:       y,
		StartTime:       startTime,
		EndTime:         endTime,
	})
}

// SubmitWatermark dispatches a watermark job.
func (s *JobService) SubmitWatermark(ctx context.Context, videoID int64, watermarkPath string, x, y int, opacity, scale float64) (*model.Job, error) {
	if _, err := s.getVideo(ctx, videoID); err != nil {
		return nil, err
	}

	return s.dispatch(ctx, model.JobTypeWatermark, videoID, &model.WatermarkJobPayload{
		VideoID:       videoID,
		WatermarkPath: watermarkPath,
		XPosition:     x,
		YPosition:     y,
		Opacity:       opacity,
		Scale:         scale,
	})
}

// SubmitQualityConversion pre-reserves a placeholder variant row per requested
// quality, then dispatches a single conversion job covering the whole batch.
// Reservation happens before enqueueing so concurrent status queries see
// "processing" rather than "not found". Unknown quality strings are rejected
// here for the whole batch.
func (s *JobService) SubmitQualityConversion(ctx context.Context, req *model.QualityConversionRequest) (*model.Job, error) {
	if _, err := s.getVideo(ctx, req.VideoID); err != nil {
		return nil, err
	}

	qualities := make([]model.VideoQuality, 0, len(req.Qualities))
	for _, raw := range req.Qualities {
		q, err := model.ParseQuality(raw)
		if err != nil {
			return nil, err
		}
		qualities = append(qualities, q)
	}

	for _, q := range qualities {
		settings := model.SettingsForQuality(q)
		_, err := s.store.ReserveVariant(ctx, &model.Variant{
			OriginalVideoID: req.VideoID,
			Quality:         q,
			Filename:        fmt.Sprintf("%s_%d_processing.mp4", q, req.VideoID),
			FilePath:        fmt.Sprintf("processing/%s_%d.mp4", q, req.VideoID),
			Width:           settings.Width,
			Height:          settings.Height,
			CreatedAt:       time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("reserve variant %s: %w", q, err)
		}
	}

	return s.dispatch(ctx, model.JobTypeQualityConversion, req.VideoID, &model.QualityJobPayload{
		VideoID:   req.VideoID,
		Qualities: qualities,
	})
}

// State machine. All transitions are owned here; stores stay policy-free.

// MarkProcessing moves a pending job to processing, setting startedAt only if
// unset so a redelivered task keeps the original start time. A job already in
// a terminal state returns ErrJobTerminal without side effects.
func (s *JobService) MarkProcessing(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return job, ErrJobTerminal
	}
	if job.Status == model.JobStatusProcessing {
		// Redelivered while in flight: keep the existing start time.
		return job, nil
	}
	if !job.Status.CanTransition(model.JobStatusProcessing) {
		return nil, fmt.Errorf("illegal transition %s -> %s for job %s", job.Status, model.JobStatusProcessing, jobID)
	}

	job.Status = model.JobStatusProcessing
	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	s.publish(ctx, job.ID, job.Status)
	return job, nil
}

// CompleteJob moves a processing job to completed, recording the result
// payload and setting completedAt exactly once. Completing an already
// completed job is a no-op.
func (s *JobService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusCompleted {
		return nil
	}
	if !job.Status.CanTransition(model.JobStatusCompleted) {
		return fmt.Errorf("illegal transition %s -> %s for job %s", job.Status, model.JobStatusCompleted, jobID)
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	job.Status = model.JobStatusCompleted
	job.ResultData = resultBytes
	job.ErrorMessage = ""
	if job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	s.publish(ctx, job.ID, job.Status)
	return nil
}

// FailJob moves a processing job to failed, recording the cause. Failing an
// already failed job is a no-op.
func (s *JobService) FailJob(ctx context.Context, jobID, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusFailed {
		return nil
	}
	if !job.Status.CanTransition(model.JobStatusFailed) {
		return fmt.Errorf("illegal transition %s -> %s for job %s", job.Status, model.JobStatusFailed, jobID)
	}

	job.Status = model.JobStatusFailed
	job.ErrorMessage = errMsg
	if job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	s.publish(ctx, job.ID, job.Status)
	return nil
}

// Queries

// GetStatus maps a job's stored status to the fixed client-visible payload.
// No dynamic progress tracking exists; the percentage is a fixed mapping.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.JobStatusResponse{JobID: jobID, Status: job.Status}
	switch job.Status {
	case model.JobStatusPending:
		resp.ProgressPercentage = 0
		resp.Message = "Job is waiting to be processed"
	case model.JobStatusProcessing:
		resp.ProgressPercentage = 50
		resp.Message = "Job is currently being processed"
	case model.JobStatusCompleted:
		resp.ProgressPercentage = 100
		resp.Message = "Job completed successfully"
	case model.JobStatusFailed:
		resp.ProgressPercentage = 0
		resp.Message = fmt.Sprintf("Job failed: %s", job.ErrorMessage)
	}
	return resp, nil
}

// JobResult is what GetResult hands the HTTP layer: either a downloadable
// artifact (FilePath set) or a structured response.
type JobResult struct {
	FilePath string
	Filename string
	Response *model.JobResultResponse
}

// GetResult resolves a job's outcome. A non-completed job returns its current
// status with an explanatory message, not an error. A completed job whose
// result references an artifact that exists on disk resolves to a download;
// quality conversions always resolve to the structured per-quality payload.
func (s *JobService) GetResult(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusCompleted {
		msg := "Job not completed yet"
		if job.Status == model.JobStatusFailed {
			msg = fmt.Sprintf("Job failed: %s", job.ErrorMessage)
		}
		return &JobResult{Response: &model.JobResultResponse{
			JobID:   jobID,
			Status:  job.Status,
			Message: msg,
		}}, nil
	}

	var resultData map[string]interface{}
	if len(job.ResultData) > 0 {
		if err := json.Unmarshal(job.ResultData, &resultData); err != nil {
			return nil, fmt.Errorf("parse result data: %w", err)
		}
	}

	if job.JobType == model.JobTypeTrim {
		var tr model.TrimResult
		if err := json.Unmarshal(job.ResultData, &tr); err == nil && tr.TrimmedVideoID != 0 {
			tv, err := s.store.GetTrimmedVideo(ctx, tr.TrimmedVideoID)
			if err == nil {
				if _, statErr := os.Stat(tv.FilePath); statErr == nil {
					return &JobResult{FilePath: tv.FilePath, Filename: tv.Filename}, nil
				}
			}
		}
	} else if outputFile, ok := resultData["outputFile"].(string); ok && outputFile != "" {
		outputPath := filepath.Join(s.storage.ProcessedDir, outputFile)
		if _, statErr := os.Stat(outputPath); statErr == nil {
			return &JobResult{FilePath: outputPath, Filename: outputFile}, nil
		}
	}

	return &JobResult{Response: &model.JobResultResponse{
		JobID:  jobID,
		Status: job.Status,
		Result: resultData,
	}}, nil
}

// ListJobsByVideo returns the audit trail of jobs submitted for a video.
func (s *JobService) ListJobsByVideo(ctx context.Context, videoID int64) ([]*model.Job, error) {
	if _, err := s.getVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.store.ListJobsByVideo(ctx, videoID)
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *JobService) getVideo(ctx context.Context, videoID int64) (*model.Video, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return video, nil
}

func (s *JobService) publish(ctx context.Context, jobID string, status model.JobStatus) {
	if err := s.notifier.PublishStatus(ctx, jobID, status); err != nil {
		log.Warn().Err(err).Str("jobId", jobID).Msg("status notification failed")
	}
}
