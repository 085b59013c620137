package service

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/clipforge/api/internal/model"
)

// QueueVideoProcessing is the dedicated queue all transformation tasks run on,
// isolated from any other queue traffic.
const QueueVideoProcessing = "video_processing"

// Task types, one per job type.
const (
	TaskTypeUploadProcess     = "video:upload_process"
	TaskTypeTrim              = "video:trim"
	TaskTypeTextOverlay       = "video:text_overlay"
	TaskTypeImageOverlay      = "video:image_overlay"
	TaskTypeVideoOverlay      = "video:video_overlay"
	TaskTypeWatermark         = "video:watermark"
	TaskTypeQualityConversion = "video:quality_conversion"
)

var taskTypeByJobType = map[model.JobType]string{
	model.JobTypeUploadProcess:     TaskTypeUploadProcess,
	model.JobTypeTrim:              TaskTypeTrim,
	model.JobTypeTextOverlay:       TaskTypeTextOverlay,
	model.JobTypeImageOverlay:      TaskTypeImageOverlay,
	model.JobTypeVideoOverlay:      TaskTypeVideoOverlay,
	model.JobTypeWatermark:         TaskTypeWatermark,
	model.JobTypeQualityConversion: TaskTypeQualityConversion,
}

// TaskEnqueuer is the slice of asynq.Client the dispatcher needs. Tests
// substitute a fake.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskPayload is the wire envelope of a queued task. JobID doubles as the
// asynq task ID, which gives at most one live task per job.
type TaskPayload struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

func newJobTask(jobType model.JobType, jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(TaskPayload{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskTypeByJobType[jobType], data), nil
}
