package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/store"
)

type enqueuedTask struct {
	task *asynq.Task
	opts []asynq.Option
}

// fakeEnqueuer records enqueued tasks instead of talking to Redis.
type fakeEnqueuer struct {
	tasks []enqueuedTask
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, enqueuedTask{task: task, opts: opts})
	return &asynq.TaskInfo{}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func newTestService(t *testing.T) (*JobService, *store.MemoryStore, *fakeEnqueuer) {
	t.Helper()
	st := store.NewMemoryStore()
	enq := &fakeEnqueuer{}
	svc := NewJobService(st, enq, nil, config.StorageConfig{ProcessedDir: t.TempDir()})
	return svc, st, enq
}

func seedVideo(t *testing.T, st *store.MemoryStore, duration float64) *model.Video {
	t.Helper()
	v := &model.Video{
		Filename:         "clip.mp4",
		OriginalFilename: "clip.mp4",
		FilePath:         "/tmp/clip.mp4",
		Duration:         &duration,
		UploadTime:       time.Now().UTC(),
	}
	if err := st.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return v
}

func TestSubmitTrimDispatchesSingleTask(t *testing.T) {
	ctx := context.Background()
	svc, st, enq := newTestService(t)
	video := seedVideo(t, st, 60)

	job, err := svc.SubmitTrim(ctx, &model.TrimRequest{VideoID: video.ID, StartTime: 5, EndTime: 15})
	if err != nil {
		t.Fatalf("SubmitTrim: %v", err)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != model.JobStatusPending {
		t.Errorf("status = %s, want pending", stored.Status)
	}
	if stored.JobType != model.JobTypeTrim {
		t.Errorf("jobType = %s", stored.JobType)
	}
	if stored.StartedAt != nil || stored.CompletedAt != nil {
		t.Error("pending job must not carry start or completion times")
	}

	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
	task := enq.tasks[0]
	if task.task.Type() != TaskTypeTrim {
		t.Errorf("task type = %s", task.task.Type())
	}

	var envelope TaskPayload
	if err := json.Unmarshal(task.task.Payload(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.JobID != job.ID {
		t.Errorf("envelope jobId = %s, want %s", envelope.JobID, job.ID)
	}

	if id, ok := optionValue(task.opts, asynq.TaskIDOpt); !ok || id != job.ID {
		t.Errorf("task id option = %v, want %s", id, job.ID)
	}
	if q, ok := optionValue(task.opts, asynq.QueueOpt); !ok || q != QueueVideoProcessing {
		t.Errorf("queue option = %v, want %s", q, QueueVideoProcessing)
	}
	if r, ok := optionValue(task.opts, asynq.MaxRetryOpt); !ok || r != 0 {
		t.Errorf("max retry option = %v, want 0", r)
	}
}

func TestSubmitTrimRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, st, enq := newTestService(t)
	video := seedVideo(t, st, 60)

	tests := []struct {
		name string
		req  *model.TrimRequest
		want error
	}{
		{"end before start", &model.TrimRequest{VideoID: video.ID, StartTime: 10, EndTime: 5}, ErrInvalidTimeRange},
		{"end equals start", &model.TrimRequest{VideoID: video.ID, StartTime: 10, EndTime: 10}, ErrInvalidTimeRange},
		{"negative start", &model.TrimRequest{VideoID: video.ID, StartTime: -1, EndTime: 5}, ErrInvalidTimeRange},
		{"end past duration", &model.TrimRequest{VideoID: video.ID, StartTime: 0, EndTime: 61}, ErrInvalidTimeRange},
		{"missing video", &model.TrimRequest{VideoID: 999, StartTime: 0, EndTime: 5}, ErrVideoNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SubmitTrim(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("SubmitTrim = %v, want %v", err, tt.want)
			}
		})
	}

	// Rejections happen synchronously: nothing reached the queue or the store.
	if len(enq.tasks) != 0 {
		t.Errorf("enqueued %d tasks after rejections", len(enq.tasks))
	}
	jobs, _ := st.ListJobsByVideo(ctx, video.ID)
	if len(jobs) != 0 {
		t.Errorf("found %d job rows after rejections", len(jobs))
	}
}

func TestSubmitTrimEnqueueFailureLeavesPendingRow(t *testing.T) {
	ctx := context.Background()
	svc, st, enq := newTestService(t)
	video := seedVideo(t, st, 60)
	enq.err = errors.New("broker down")

	if _, err := svc.SubmitTrim(ctx, &model.TrimRequest{VideoID: video.ID, StartTime: 0, EndTime: 5}); err == nil {
		t.Fatal("expected error when enqueue fails")
	}

	// The job row survives as a detectable pending leak.
	jobs, err := st.ListJobsByVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("ListJobsByVideo: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("found %d job rows, want 1", len(jobs))
	}
	if jobs[0].Status != model.JobStatusPending {
		t.Errorf("leaked job status = %s, want pending", jobs[0].Status)
	}
}

func TestSubmitTextOverlayAppliesFontDefaults(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	video := seedVideo(t, st, 60)

	job, err := svc.SubmitTextOverlay(ctx, &model.TextOverlayRequest{
		VideoID: video.ID,
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("SubmitTextOverlay: %v", err)
	}

	var payload model.OverlayJobPayload
	if err := json.Unmarshal(job.InputData, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.FontSize != 24 || payload.FontColor != "white" || payload.FontFamily != "Arial" {
		t.Errorf("defaults not applied: size=%d color=%q family=%q",
			payload.FontSize, payload.FontColor, payload.FontFamily)
	}
	if payload.OverlayType != model.OverlayText {
		t.Errorf("overlayType = %s", payload.OverlayType)
	}
}

func TestSubmitQualityConversionReservesPlaceholders(t *testing.T) {
	ctx := context.Background()
	svc, st, enq := newTestService(t)
	video := seedVideo(t, st, 60)

	job, err := svc.SubmitQualityConversion(ctx, &model.QualityConversionRequest{
		VideoID:   video.ID,
		Qualities: []string{"720p", "480p"},
	})
	if err != nil {
		t.Fatalf("SubmitQualityConversion: %v", err)
	}
	if job.JobType != model.JobTypeQualityConversion {
		t.Errorf("jobType = %s", job.JobType)
	}

	variants, err := st.ListVariantsByVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("ListVariantsByVideo: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("reserved %d variants, want 2", len(variants))
	}
	for _, v := range variants {
		if !v.IsProcessing {
			t.Errorf("variant %s not flagged processing", v.Quality)
		}
	}

	// One task covers the whole batch.
	if len(enq.tasks) != 1 {
		t.Errorf("enqueued %d tasks, want 1", len(enq.tasks))
	}
}

func TestSubmitQualityConversionRejectsUnknownQuality(t *testing.T) {
	ctx := context.Background()
	svc, st, enq := newTestService(t)
	video := seedVideo(t, st, 60)

	_, err := svc.SubmitQualityConversion(ctx, &model.QualityConversionRequest{
		VideoID:   video.ID,
		Qualities: []string{"720p", "999p"},
	})
	if err == nil {
		t.Fatal("expected error for unknown quality")
	}

	// The whole batch rejects before any reservation or dispatch.
	variants, _ := st.ListVariantsByVideo(ctx, video.ID)
	if len(variants) != 0 {
		t.Errorf("reserved %d variants after rejection", len(variants))
	}
	if len(enq.tasks) != 0 {
		t.Errorf("enqueued %d tasks after rejection", len(enq.tasks))
	}
}

func TestSubmitQualityConversionRepeatKeepsSingleRowPerQuality(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	video := seedVideo(t, st, 60)

	req := &model.QualityConversionRequest{VideoID: video.ID, Qualities: []string{"1080p"}}
	if _, err := svc.SubmitQualityConversion(ctx, req); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.SubmitQualityConversion(ctx, req); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	variants, _ := st.ListVariantsByVideo(ctx, video.ID)
	if len(variants) != 1 {
		t.Errorf("found %d variant rows after repeat submission, want 1", len(variants))
	}
}

func seedJob(t *testing.T, st *store.MemoryStore, status model.JobStatus) *model.Job {
	t.Helper()
	job := &model.Job{
		ID:        "job-" + string(status),
		JobType:   model.JobTypeTrim,
		Status:    status,
		VideoID:   1,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestMarkProcessingSetsStartedAtOnce(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	job := seedJob(t, st, model.JobStatusPending)

	first, err := svc.MarkProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if first.Status != model.JobStatusProcessing {
		t.Errorf("status = %s", first.Status)
	}
	if first.StartedAt == nil {
		t.Fatal("startedAt not set")
	}

	// A redelivery while processing keeps the original start time.
	second, err := svc.MarkProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("repeat MarkProcessing: %v", err)
	}
	if second.StartedAt == nil || !second.StartedAt.Equal(*first.StartedAt) {
		t.Errorf("startedAt changed on redelivery: %v vs %v", second.StartedAt, first.StartedAt)
	}
}

func TestMarkProcessingTerminalJob(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	for _, status := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed} {
		job := seedJob(t, st, status)
		if _, err := svc.MarkProcessing(ctx, job.ID); !errors.Is(err, ErrJobTerminal) {
			t.Errorf("MarkProcessing(%s job) = %v, want ErrJobTerminal", status, err)
		}
		// Terminal check is side-effect-free.
		stored, _ := st.GetJob(ctx, job.ID)
		if stored.Status != status {
			t.Errorf("terminal job mutated: %s -> %s", status, stored.Status)
		}
	}
}

func TestCompleteJob(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	job := seedJob(t, st, model.JobStatusProcessing)

	if err := svc.CompleteJob(ctx, job.ID, map[string]string{"outputFile": "out.mp4"}); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	stored, _ := st.GetJob(ctx, job.ID)
	if stored.Status != model.JobStatusCompleted {
		t.Errorf("status = %s", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("completedAt not set")
	}
	if len(stored.ResultData) == 0 {
		t.Error("resultData not recorded")
	}

	// Completing again is a no-op and keeps the first completion time.
	firstCompleted := *stored.CompletedAt
	if err := svc.CompleteJob(ctx, job.ID, nil); err != nil {
		t.Fatalf("repeat CompleteJob: %v", err)
	}
	again, _ := st.GetJob(ctx, job.ID)
	if !again.CompletedAt.Equal(firstCompleted) {
		t.Error("completedAt changed on repeat completion")
	}
	if len(again.ResultData) == 0 {
		t.Error("repeat completion clobbered resultData")
	}

	// A pending job cannot complete without passing through processing.
	pending := seedJob(t, st, model.JobStatusPending)
	if err := svc.CompleteJob(ctx, pending.ID, nil); err == nil {
		t.Error("expected error completing a pending job")
	}
}

func TestFailJob(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	job := seedJob(t, st, model.JobStatusProcessing)

	if err := svc.FailJob(ctx, job.ID, "ffmpeg exploded"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	stored, _ := st.GetJob(ctx, job.ID)
	if stored.Status != model.JobStatusFailed {
		t.Errorf("status = %s", stored.Status)
	}
	if stored.ErrorMessage != "ffmpeg exploded" {
		t.Errorf("errorMessage = %q", stored.ErrorMessage)
	}
	if stored.CompletedAt == nil {
		t.Error("completedAt not set on failure")
	}

	// Failing again is a no-op and keeps the first cause.
	if err := svc.FailJob(ctx, job.ID, "second cause"); err != nil {
		t.Fatalf("repeat FailJob: %v", err)
	}
	again, _ := st.GetJob(ctx, job.ID)
	if again.ErrorMessage != "ffmpeg exploded" {
		t.Errorf("repeat failure clobbered cause: %q", again.ErrorMessage)
	}

	// A completed job cannot flip to failed.
	completed := seedJob(t, st, model.JobStatusCompleted)
	if err := svc.FailJob(ctx, completed.ID, "late failure"); err == nil {
		t.Error("expected error failing a completed job")
	}
}

func TestGetStatusMapping(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	tests := []struct {
		status  model.JobStatus
		percent int
	}{
		{model.JobStatusPending, 0},
		{model.JobStatusProcessing, 50},
		{model.JobStatusCompleted, 100},
		{model.JobStatusFailed, 0},
	}

	for _, tt := range tests {
		job := seedJob(t, st, tt.status)
		if tt.status == model.JobStatusFailed {
			job.ErrorMessage = "boom"
			if err := st.UpdateJob(ctx, job); err != nil {
				t.Fatalf("UpdateJob: %v", err)
			}
		}

		resp, err := svc.GetStatus(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetStatus(%s): %v", tt.status, err)
		}
		if resp.Status != tt.status || resp.ProgressPercentage != tt.percent {
			t.Errorf("GetStatus(%s) = %s/%d%%, want %s/%d%%",
				tt.status, resp.Status, resp.ProgressPercentage, tt.status, tt.percent)
		}
		if resp.Message == "" {
			t.Errorf("GetStatus(%s) has empty message", tt.status)
		}
	}

	if _, err := svc.GetStatus(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetStatus(missing) = %v, want ErrJobNotFound", err)
	}
}

func TestGetStatusFailedEmbedsError(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	job := seedJob(t, st, model.JobStatusProcessing)
	if err := svc.FailJob(ctx, job.ID, "input corrupt"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	resp, err := svc.GetStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if resp.Message != "Job failed: input corrupt" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestGetResultNonCompleted(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	pending := seedJob(t, st, model.JobStatusPending)
	res, err := svc.GetResult(ctx, pending.ID)
	if err != nil {
		t.Fatalf("GetResult(pending): %v", err)
	}
	if res.FilePath != "" {
		t.Error("non-completed job must not resolve to a download")
	}
	if res.Response == nil || res.Response.Status != model.JobStatusPending {
		t.Errorf("unexpected response: %+v", res.Response)
	}

	failed := seedJob(t, st, model.JobStatusProcessing)
	if err := svc.FailJob(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	res, err = svc.GetResult(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetResult(failed): %v", err)
	}
	if res.Response.Message != "Job failed: boom" {
		t.Errorf("message = %q", res.Response.Message)
	}
}

func TestGetResultTrimResolvesDownload(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	dir := t.TempDir()
	clipPath := filepath.Join(dir, "trimmed_abc.mp4")
	if err := os.WriteFile(clipPath, []byte("clip bytes"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}

	tv := &model.TrimmedVideo{OriginalVideoID: 1, Filename: "trimmed_abc.mp4", FilePath: clipPath}
	if err := st.CreateTrimmedVideo(ctx, tv); err != nil {
		t.Fatalf("CreateTrimmedVideo: %v", err)
	}

	job := seedJob(t, st, model.JobStatusProcessing)
	result := &model.TrimResult{TrimmedVideoID: tv.ID, Filename: tv.Filename, FilePath: clipPath, Duration: 10}
	if err := svc.CompleteJob(ctx, job.ID, result); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	res, err := svc.GetResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.FilePath != clipPath || res.Filename != "trimmed_abc.mp4" {
		t.Errorf("download = %q (%q)", res.FilePath, res.Filename)
	}
}

func TestGetResultMissingArtifactFallsBackToStructured(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	tv := &model.TrimmedVideo{OriginalVideoID: 1, Filename: "gone.mp4", FilePath: "/nonexistent/gone.mp4"}
	if err := st.CreateTrimmedVideo(ctx, tv); err != nil {
		t.Fatalf("CreateTrimmedVideo: %v", err)
	}

	job := seedJob(t, st, model.JobStatusProcessing)
	if err := svc.CompleteJob(ctx, job.ID, &model.TrimResult{TrimmedVideoID: tv.ID, Filename: tv.Filename}); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	res, err := svc.GetResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.FilePath != "" {
		t.Error("missing artifact must not resolve to a download")
	}
	if res.Response == nil || res.Response.Result == nil {
		t.Error("expected structured result payload")
	}
}

func TestGetResultQualityConversionIsStructured(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	job := &model.Job{
		ID:        "qc-job",
		JobType:   model.JobTypeQualityConversion,
		Status:    model.JobStatusProcessing,
		VideoID:   1,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	result := &model.QualityConversionResult{
		VideoID: 1,
		Conversions: []model.ConversionItem{
			{Quality: model.Quality720p, VariantID: 1, Success: true},
			{Quality: model.Quality480p, Success: false, Error: "encode failed"},
		},
		TotalSuccessful: 1,
	}
	if err := svc.CompleteJob(ctx, job.ID, result); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	res, err := svc.GetResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.FilePath != "" {
		t.Error("quality conversion must resolve to a structured payload")
	}
	data, ok := res.Response.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result payload type %T", res.Response.Result)
	}
	if data["totalSuccessful"] != float64(1) {
		t.Errorf("totalSuccessful = %v", data["totalSuccessful"])
	}
}
