// Package notify publishes job status transitions on a Redis pub/sub channel
// so interested consumers can react without polling.
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/model"
)

// StatusEvent is the message published on every job status transition.
type StatusEvent struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

type Notifier struct {
	client  *redis.Client
	channel string
}

func New(client *redis.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

// PublishStatus emits a status event. A nil Notifier is a no-op, so callers
// can run without the pub/sub side channel configured.
func (n *Notifier) PublishStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	if n == nil {
		return nil
	}
	payload, err := json.Marshal(StatusEvent{JobID: jobID, Status: status})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}
