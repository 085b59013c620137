// Package worker drives jobs through their state machine: each handler marks
// the job processing on entry, invokes the media transformer, persists the
// outcome, and always leaves the job in a terminal state, including on error.
package worker

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
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/store"
)

// Executor runs transformation tasks delivered by the queue. Delivery is
// at-least-once, so every handler must tolerate redelivery: the terminal-state
// check in the entry bracket short-circuits repeats cheaply.
type Executor struct {
	jobs        *service.JobService
	store       store.Store
	transformer media.Transformer
	storage     config.StorageConfig
}

func NewExecutor(jobs *service.JobService, st store.Store, transformer media.Transformer, storage config.StorageConfig) *Executor {
	return &Executor{
		jobs:        jobs,
		store:       st,
		transformer: transformer,
		storage:     storage,
	}
}

// Register binds every task type to its handler.
func (e *Executor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(service.TaskTypeUploadProcess, e.ProcessUpload)
	mux.HandleFunc(service.TaskTypeTrim, e.ProcessTrim)
	mux.HandleFunc(service.TaskTypeTextOverlay, e.ProcessOverlay)
	mux.HandleFunc(service.TaskTypeImageOverlay, e.ProcessOverlay)
	mux.HandleFunc(service.TaskTypeVideoOverlay, e.ProcessOverlay)
	mux.HandleFunc(service.TaskTypeWatermark, e.ProcessWatermark)
	mux.HandleFunc(service.TaskTypeQualityConversion, e.ProcessQualityConversion)
}

// run is the shared state-machine bracket. It marks the job processing,
// executes fn, and records the terminal state. A transform failure is
// recorded on the job and swallowed: the job is never auto-retried and a
// failure must never crash the worker.
func (e *Executor) run(ctx context.Context, t *asynq.Task, fn func(ctx context.Context, jobID string, payload json.RawMessage) (interface{}, error)) error {
	var envelope service.TaskPayload
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("unmarshal task envelope: %w", err)
	}
	jobID := envelope.JobID

	_, err := e.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobTerminal) {
			log.Info().Str("jobId", jobID).Msg("task redelivered after terminal state, skipping")
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	log.Info().Str("jobId", jobID).Str("taskType", t.Type()).Msg("job started")

	result, err := fn(ctx, jobID, envelope.Payload)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("job failed")
		if failErr := e.jobs.FailJob(ctx, jobID, err.Error()); failErr != nil {
			log.Error().Err(failErr).Str("jobId", jobID).Msg("failed to record job failure")
		}
		return nil
	}

	if err := e.jobs.CompleteJob(ctx, jobID, result); err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("failed to record job completion")
		return nil
	}

	log.Info().Str("jobId", jobID).Msg("job completed")
	return nil
}

// ProcessUpload extracts metadata for an already-stored source file and marks
// the video processed.
func (e *Executor) ProcessUpload(ctx context.Context, t *asynq.Task) error {
	return e.run(ctx, t, func(ctx context.Context, jobID string, raw json.RawMessage) (interface{}, error) {
		var payload model.UploadJobPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}

		meta, err := e.transformer.Probe(ctx, payload.FilePath)
		if err != nil {
			return nil, err
		}

		video, err := e.store.GetVideo(ctx, payload.VideoID)
		if err != nil {
			return nil, fmt.Errorf("video not found")
		}
		video.Duration = &meta.Duration
		video.FileSize = &meta.Size
		video.Width = &meta.Width
		video.Height = &meta.Height
		video.FPS = &meta.FPS
		video.IsProcessed = true
		if err := e.store.UpdateVideo(ctx, video); err != nil {
			return nil, err
		}

		return &model.UploadResult{
			VideoID:  payload.VideoID,
			Metadata: meta,
			Status:   "completed",
		}, nil
	})
}

// ProcessTrim cuts a new clip from the source video and records it as a
// derived video.
func (e *Executor) ProcessTrim(ctx context.Context, t *asynq.Task) error {
	return e.run(ctx, t, func(ctx context.Context, jobID string, raw json.RawMessage) (interface{}, error) {
		var payload model.TrimJobPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}

		video, err := e.store.GetVideo(ctx, payload.VideoID)
		if err != nil {
			return nil, fmt.Errorf("video not found")
		}

		filename := fmt.Sprintf("trimmed_%s%s", uuid.New().String(), filepath.Ext(video.Filename))
		outputPath := filepath.Join(e.storage.ProcessedDir, filename)

		if err := e.transformer.Trim(ctx, video.FilePath, outputPath, payload.StartTime, payload.EndTime); err != nil {
			removePartial(outputPath)
			return nil, fmt.Errorf("failed to trim video: %w", err)
		}

		duration := payload.EndTime - payload.StartTime
		tv := &model.TrimmedVideo{
			OriginalVideoID: payload.VideoID,
			Filename:        filename,
			FilePath:        outputPath,
			StartTime:       payload.StartTime,
			EndTime:         payload.EndTime,
			Duration:        duration,
			FileSize:        fileSize(outputPath),
			CreatedAt:       time.Now().UTC(),
		}
		if err := e.store.CreateTrimmedVideo(ctx, tv); err != nil {
			removePartial(outputPath)
			return nil, err
		}

		return &model.TrimResult{
			TrimmedVideoID: tv.ID,
			Filename:       filename,
			FilePath:       outputPath,
			Duration:       duration,
		}, nil
	})
}

// ProcessOverlay composites a text, image, or video overlay onto the video's
// current file and re-points the video at the new artifact, so overlays
// applied over time chain onto one another.
func (e *Executor) ProcessOverlay(ctx context.Context, t *asynq.Task) error {
	return e.run(ctx, t, func(ctx context.Context, jobID string, raw json.RawMessage) (interface{}, error) {
		var payload model.OverlayJobPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}

		video, err := e.store.GetVideo(ctx, payload.VideoID)
		if err != nil {
			return nil, fmt.Errorf("video not found")
		}

		outputFilename := fmt.Sprintf("%s_overlay_%s%s", payload.OverlayType, uuid.New().String(), filepath.Ext(video.Filename))
		outputPath := filepath.Join(e.storage.ProcessedDir, outputFilename)

		overlay := &model.Overlay{
			VideoID:     payload.VideoID,
			OverlayType: payload.OverlayType,
			XPosition:   payload.XPosition,
			YPosition:   payload.YPosition,
			StartTime:   payload.StartTime,
			EndTime:     payload.EndTime,
			CreatedAt:   time.Now().UTC(),
		}

		switch payload.OverlayType {
		case model.OverlayText:
			err = e.transformer.TextOverlay(ctx, video.FilePath, outputPath, media.TextOverlayParams{
				Content:    payload.Content,
				X:          payload.XPosition,
				Y:          payload.YPosition,
				StartTime:  payload.StartTime,
				EndTime:    payload.EndTime,
				FontSize:   payload.FontSize,
				FontColor:  payload.FontColor,
				FontFamily: payload.FontFamily,
			})
			overlay.Content = payload.Content
			overlay.FontSize = payload.FontSize
			overlay.FontColor = payload.FontColor
			overlay.FontFamily = payload.FontFamily
		case model.OverlayImage, model.OverlayVideo:
			err = e.transformer.FileOverlay(ctx, video.FilePath, outputPath, media.FileOverlayParams{
				OverlayPath: payload.OverlayFilePath,
				X:           payload.XPosition,
				Y:           payload.YPosition,
				StartTime:   payload.StartTime,
				EndTime:     payload.EndTime,
			})
			overlay.FilePath = payload.OverlayFilePath
		default:
			return nil, fmt.Errorf("unknown overlay type %q", payload.OverlayType)
		}
		if err != nil {
			removePartial(outputPath)
			return nil, fmt.Errorf("failed to add %s overlay: %w", payload.OverlayType, err)
		}

		if err := e.store.CreateOverlay(ctx, overlay); err != nil {
			removePartial(outputPath)
			return nil, err
		}

		// Re-point the video at the composited artifact.
		video.FilePath = outputPath
		if err := e.store.UpdateVideo(ctx, video); err != nil {
			removePartial(outputPath)
			return nil, err
		}

		return &model.OverlayResult{
			OverlayID:   overlay.ID,
			OutputFile:  outputFilename,
			OverlayType: payload.OverlayType,
		}, nil
	})
}

// ProcessWatermark composites a watermark image onto the video's current file,
// with the same chaining behavior as overlays.
func (e *Executor) ProcessWatermark(ctx context.Context, t *asynq.Task) error {
	return e.run(ctx, t, func(ctx context.Context, jobID string, raw json.RawMessage) (interface{}, error) {
		var payload model.WatermarkJobPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}

		video, err := e.store.GetVideo(ctx, payload.VideoID)
		if err != nil {
			return nil, fmt.Errorf("video not found")
		}

		outputFilename := fmt.Sprintf("watermarked_%s%s", uuid.New().String(), filepath.Ext(video.Filename))
		outputPath := filepath.Join(e.storage.ProcessedDir, outputFilename)

		err = e.transformer.Watermark(ctx, video.FilePath, outputPath, media.WatermarkParams{
			WatermarkPath: payload.WatermarkPath,
			X:             payload.XPosition,
			Y:             payload.YPosition,
			Opacity:       payload.Opacity,
			Scale:         payload.Scale,
		})
		if err != nil {
			removePartial(outputPath)
			return nil, fmt.Errorf("failed to add watermark: %w", err)
		}

		wm := &model.Watermark{
			VideoID:       payload.VideoID,
			WatermarkPath: payload.WatermarkPath,
			XPosition:     payload.XPosition,
			YPosition:     payload.YPosition,
			Opacity:       payload.Opacity,
			Scale:         payload.Scale,
			CreatedAt:     time.Now().UTC(),
		}
		if err := e.store.CreateWatermark(ctx, wm); err != nil {
			removePartial(outputPath)
			return nil, err
		}

		// Only re-point the video once the row is recorded, so a store failure
		// never leaves the video referencing an untracked composite.
		video.FilePath = outputPath
		if err := e.store.UpdateVideo(ctx, video); err != nil {
			removePartial(outputPath)
			return nil, err
		}

		return &model.WatermarkResult{
			WatermarkID: wm.ID,
			OutputFile:  outputFilename,
		}, nil
	})
}

// ProcessQualityConversion renders each requested quality sequentially,
// recording success or failure per quality. One quality failing does not fail
// the others or the job: the job completes once every quality has been
// attempted, and TotalSuccessful is the summary signal.
func (e *Executor) ProcessQualityConversion(ctx context.Context, t *asynq.Task) error {
	return e.run(ctx, t, func(ctx context.Context, jobID string, raw json.RawMessage) (interface{}, error) {
		var payload model.QualityJobPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}

		video, err := e.store.GetVideo(ctx, payload.VideoID)
		if err != nil {
			return nil, fmt.Errorf("video not found")
		}

		results := make([]model.ConversionItem, 0, len(payload.Qualities))
		for _, quality := range payload.Qualities {
			item := e.convertOne(ctx, video, quality)
			results = append(results, item)
		}

		total := 0
		for _, r := range results {
			if r.Success {
				total++
			}
		}

		return &model.QualityConversionResult{
			VideoID:         payload.VideoID,
			Conversions:     results,
			TotalSuccessful: total,
		}, nil
	})
}

// convertOne renders a single quality. On success the placeholder variant row
// is filled in place and unflagged; on failure the placeholder is left with
// isProcessing set, so a stale placeholder is a detectable symptom rather
// than silent data loss.
func (e *Executor) convertOne(ctx context.Context, video *model.Video, quality model.VideoQuality) model.ConversionItem {
	settings := model.SettingsForQuality(quality)
	filename := fmt.Sprintf("%s_%s%s", quality, uuid.New().String(), filepath.Ext(video.Filename))
	outputPath := filepath.Join(e.storage.ProcessedDir, filename)

	if err := e.transformer.ConvertQuality(ctx, video.FilePath, outputPath, settings); err != nil {
		removePartial(outputPath)
		log.Error().Err(err).Int64("videoId", video.ID).Str("quality", string(quality)).Msg("conversion failed")
		return model.ConversionItem{Quality: quality, Success: false, Error: err.Error()}
	}

	variant, err := e.store.GetVariant(ctx, video.ID, quality)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return model.ConversionItem{Quality: quality, Success: false, Error: err.Error()}
		}
		// Placeholder missing (reservation lost out-of-band): re-reserve so
		// the fill below still lands on the natural key.
		variant, err = e.store.ReserveVariant(ctx, &model.Variant{
			OriginalVideoID: video.ID,
			Quality:         quality,
			Filename:        filename,
			FilePath:        outputPath,
			Width:           settings.Width,
			Height:          settings.Height,
			CreatedAt:       time.Now().UTC(),
		})
		if err != nil {
			return model.ConversionItem{Quality: quality, Success: false, Error: err.Error()}
		}
	}

	variant.Filename = filename
	variant.FilePath = outputPath
	variant.FileSize = fileSize(outputPath)
	variant.Width = settings.Width
	variant.Height = settings.Height
	variant.Bitrate = settings.Bitrate
	variant.IsProcessing = false
	if err := e.store.UpdateVariant(ctx, variant); err != nil {
		return model.ConversionItem{Quality: quality, Success: false, Error: err.Error()}
	}

	return model.ConversionItem{
		Quality:   quality,
		VariantID: variant.ID,
		Filename:  filename,
		Success:   true,
	}
}

func fileSize(path string) *int64 {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	size := info.Size()
	return &size
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove partial output")
	}
}
