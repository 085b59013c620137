package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/model"
)

// Key layout:
//
//	job:<uuid>                 job row (JSON)
//	video:<id>                 video row (JSON)
//	videos                     list of video ids, insertion order
//	video:<id>:jobs            list of job ids for a video
//	trimmed:<id>               trimmed video row (JSON)
//	overlay:<id>               overlay row (JSON)
//	watermark:<id>             watermark row (JSON)
//	video:<id>:trimmed         list of trimmed ids
//	video:<id>:overlays        list of overlay ids
//	video:<id>:watermarks      list of watermark ids
//	variant:<videoID>:<quality> variant row (JSON), natural key
//	video:<id>:variants        set of quality strings with a variant row
//	seq:video, seq:trimmed, …  id counters
//
// Rows never expire: jobs are an append-only audit trail.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *RedisStore) nextID(ctx context.Context, seq string) (int64, error) {
	return s.client.Incr(ctx, "seq:"+seq).Result()
}

// Jobs

func jobKey(id string) string { return "job:" + id }

func (s *RedisStore) CreateJob(ctx context.Context, job *model.Job) error {
	if err := s.setJSON(ctx, jobKey(job.ID), job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return s.client.RPush(ctx, fmt.Sprintf("video:%d:jobs", job.VideoID), job.ID).Err()
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := s.getJSON(ctx, jobKey(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) UpdateJob(ctx context.Context, job *model.Job) error {
	return s.setJSON(ctx, jobKey(job.ID), job)
}

func (s *RedisStore) ListJobsByVideo(ctx context.Context, videoID int64) ([]*model.Job, error) {
	ids, err := s.client.LRange(ctx, fmt.Sprintf("video:%d:jobs", videoID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Videos

func videoKey(id int64) string { return fmt.Sprintf("video:%d", id) }

func (s *RedisStore) CreateVideo(ctx context.Context, video *model.Video) error {
	id, err := s.nextID(ctx, "video")
	if err != nil {
		return err
	}
	video.ID = id
	if err := s.setJSON(ctx, videoKey(id), video); err != nil {
		return err
	}
	return s.client.RPush(ctx, "videos", id).Err()
}

func (s *RedisStore) GetVideo(ctx context.Context, videoID int64) (*model.Video, error) {
	var video model.Video
	if err := s.getJSON(ctx, videoKey(videoID), &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (s *RedisStore) UpdateVideo(ctx context.Context, video *model.Video) error {
	return s.setJSON(ctx, videoKey(video.ID), video)
}

func (s *RedisStore) ListVideos(ctx context.Context, offset, limit int64) ([]*model.Video, int64, error) {
	total, err := s.client.LLen(ctx, "videos").Result()
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.LRange(ctx, "videos", offset, offset+limit-1).Result()
	if err != nil {
		return nil, 0, err
	}
	videos := make([]*model.Video, 0, len(ids))
	for _, raw := range ids {
		var id int64
		if _, err := fmt.Sscan(raw, &id); err != nil {
			continue
		}
		video, err := s.GetVideo(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, 0, err
		}
		videos = append(videos, video)
	}
	return videos, total, nil
}

// Derived artifacts

func (s *RedisStore) CreateTrimmedVideo(ctx context.Context, tv *model.TrimmedVideo) error {
	id, err := s.nextID(ctx, "trimmed")
	if err != nil {
		return err
	}
	tv.ID = id
	if err := s.setJSON(ctx, fmt.Sprintf("trimmed:%d", id), tv); err != nil {
		return err
	}
	return s.client.RPush(ctx, fmt.Sprintf("video:%d:trimmed", tv.OriginalVideoID), id).Err()
}

func (s *RedisStore) GetTrimmedVideo(ctx context.Context, id int64) (*model.TrimmedVideo, error) {
	var tv model.TrimmedVideo
	if err := s.getJSON(ctx, fmt.Sprintf("trimmed:%d", id), &tv); err != nil {
		return nil, err
	}
	return &tv, nil
}

func (s *RedisStore) ListTrimmedByVideo(ctx context.Context, videoID int64) ([]*model.TrimmedVideo, error) {
	ids, err := s.client.LRange(ctx, fmt.Sprintf("video:%d:trimmed", videoID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.TrimmedVideo, 0, len(ids))
	for _, raw := range ids {
		var tv model.TrimmedVideo
		if err := s.getJSON(ctx, "trimmed:"+raw, &tv); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, &tv)
	}
	return out, nil
}

func (s *RedisStore) CreateOverlay(ctx context.Context, o *model.Overlay) error {
	id, err := s.nextID(ctx, "overlay")
	if err != nil {
		return err
	}
	o.ID = id
	if err := s.setJSON(ctx, fmt.Sprintf("overlay:%d", id), o); err != nil {
		return err
	}
	return s.client.RPush(ctx, fmt.Sprintf("video:%d:overlays", o.VideoID), id).Err()
}

func (s *RedisStore) ListOverlaysByVideo(ctx context.Context, videoID int64) ([]*model.Overlay, error) {
	ids, err := s.client.LRange(ctx, fmt.Sprintf("video:%d:overlays", videoID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	overlays := make([]*model.Overlay, 0, len(ids))
	for _, raw := range ids {
		var o model.Overlay
		if err := s.getJSON(ctx, "overlay:"+raw, &o); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		overlays = append(overlays, &o)
	}
	return overlays, nil
}

func (s *RedisStore) CreateWatermark(ctx context.Context, w *model.Watermark) error {
	id, err := s.nextID(ctx, "watermark")
	if err != nil {
		return err
	}
	w.ID = id
	if err := s.setJSON(ctx, fmt.Sprintf("watermark:%d", id), w); err != nil {
		return err
	}
	return s.client.RPush(ctx, fmt.Sprintf("video:%d:watermarks", w.VideoID), id).Err()
}

func (s *RedisStore) ListWatermarksByVideo(ctx context.Context, videoID int64) ([]*model.Watermark, error) {
	ids, err := s.client.LRange(ctx, fmt.Sprintf("video:%d:watermarks", videoID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	watermarks := make([]*model.Watermark, 0, len(ids))
	for _, raw := range ids {
		var w model.Watermark
		if err := s.getJSON(ctx, "watermark:"+raw, &w); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		watermarks = append(watermarks, &w)
	}
	return watermarks, nil
}

// Variants

func variantKey(videoID int64, quality model.VideoQuality) string {
	return fmt.Sprintf("variant:%d:%s", videoID, quality)
}

func (s *RedisStore) ReserveVariant(ctx context.Context, v *model.Variant) (*model.Variant, error) {
	id, err := s.nextID(ctx, "variant")
	if err != nil {
		return nil, err
	}
	v.ID = id
	v.IsProcessing = true

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	key := variantKey(v.OriginalVideoID, v.Quality)
	// SETNX keeps the reservation race-free: the first writer wins, everyone
	// else flags the existing row instead of creating a second one.
	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.GetVariant(ctx, v.OriginalVideoID, v.Quality)
		if err != nil {
			return nil, err
		}
		existing.IsProcessing = true
		if err := s.setJSON(ctx, key, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	if err := s.client.SAdd(ctx, fmt.Sprintf("video:%d:variants", v.OriginalVideoID), string(v.Quality)).Err(); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *RedisStore) GetVariant(ctx context.Context, videoID int64, quality model.VideoQuality) (*model.Variant, error) {
	var v model.Variant
	if err := s.getJSON(ctx, variantKey(videoID, quality), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *RedisStore) UpdateVariant(ctx context.Context, v *model.Variant) error {
	return s.setJSON(ctx, variantKey(v.OriginalVideoID, v.Quality), v)
}

func (s *RedisStore) ListVariantsByVideo(ctx context.Context, videoID int64) ([]*model.Variant, error) {
	qualities, err := s.client.SMembers(ctx, fmt.Sprintf("video:%d:variants", videoID)).Result()
	if err != nil {
		return nil, err
	}
	variants := make([]*model.Variant, 0, len(qualities))
	for _, q := range qualities {
		v, err := s.GetVariant(ctx, videoID, model.VideoQuality(q))
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}
