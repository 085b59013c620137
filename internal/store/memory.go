package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/clipforge/api/internal/model"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu sync.Mutex

	jobs         map[string]*model.Job
	videoJobs    map[int64][]string
	videos       map[int64]*model.Video
	videoOrder   []int64
	trimmed      map[int64]*model.TrimmedVideo
	videoTrimmed map[int64][]int64
	overlays     map[int64][]*model.Overlay
	watermarks   map[int64][]*model.Watermark
	variants     map[string]*model.Variant

	seq map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:         make(map[string]*model.Job),
		videoJobs:    make(map[int64][]string),
		videos:       make(map[int64]*model.Video),
		trimmed:      make(map[int64]*model.TrimmedVideo),
		videoTrimmed: make(map[int64][]int64),
		overlays:     make(map[int64][]*model.Overlay),
		watermarks:   make(map[int64][]*model.Watermark),
		variants:     make(map[string]*model.Variant),
		seq:          make(map[string]int64),
	}
}

func (s *MemoryStore) next(seq string) int64 {
	s.seq[seq]++
	return s.seq[seq]
}

func copyJob(j *model.Job) *model.Job {
	c := *j
	return &c
}

func (s *MemoryStore) CreateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
	s.videoJobs[job.VideoID] = append(s.videoJobs[job.VideoID], job.ID)
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) ListJobsByVideo(_ context.Context, videoID int64) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.videoJobs[videoID]
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			jobs = append(jobs, copyJob(job))
		}
	}
	return jobs, nil
}

func (s *MemoryStore) CreateVideo(_ context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video.ID = s.next("video")
	c := *video
	s.videos[video.ID] = &c
	s.videoOrder = append(s.videoOrder, video.ID)
	return nil
}

func (s *MemoryStore) GetVideo(_ context.Context, videoID int64) (*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[videoID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *video
	return &c, nil
}

func (s *MemoryStore) UpdateVideo(_ context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[video.ID]; !ok {
		return ErrNotFound
	}
	c := *video
	s.videos[video.ID] = &c
	return nil
}

func (s *MemoryStore) ListVideos(_ context.Context, offset, limit int64) ([]*model.Video, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := int64(len(s.videoOrder))
	if limit <= 0 {
		limit = 100
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	videos := make([]*model.Video, 0, end-offset)
	for _, id := range s.videoOrder[offset:end] {
		c := *s.videos[id]
		videos = append(videos, &c)
	}
	return videos, total, nil
}

func (s *MemoryStore) CreateTrimmedVideo(_ context.Context, tv *model.TrimmedVideo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tv.ID = s.next("trimmed")
	c := *tv
	s.trimmed[tv.ID] = &c
	s.videoTrimmed[tv.OriginalVideoID] = append(s.videoTrimmed[tv.OriginalVideoID], tv.ID)
	return nil
}

func (s *MemoryStore) GetTrimmedVideo(_ context.Context, id int64) (*model.TrimmedVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tv, ok := s.trimmed[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *tv
	return &c, nil
}

func (s *MemoryStore) ListTrimmedByVideo(_ context.Context, videoID int64) ([]*model.TrimmedVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.videoTrimmed[videoID]
	out := make([]*model.TrimmedVideo, 0, len(ids))
	for _, id := range ids {
		if tv, ok := s.trimmed[id]; ok {
			c := *tv
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateOverlay(_ context.Context, o *model.Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.next("overlay")
	c := *o
	s.overlays[o.VideoID] = append(s.overlays[o.VideoID], &c)
	return nil
}

func (s *MemoryStore) ListOverlaysByVideo(_ context.Context, videoID int64) ([]*model.Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.overlays[videoID]
	out := make([]*model.Overlay, 0, len(list))
	for _, o := range list {
		c := *o
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) CreateWatermark(_ context.Context, w *model.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = s.next("watermark")
	c := *w
	s.watermarks[w.VideoID] = append(s.watermarks[w.VideoID], &c)
	return nil
}

func (s *MemoryStore) ListWatermarksByVideo(_ context.Context, videoID int64) ([]*model.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.watermarks[videoID]
	out := make([]*model.Watermark, 0, len(list))
	for _, w := range list {
		c := *w
		out = append(out, &c)
	}
	return out, nil
}

func variantNaturalKey(videoID int64, quality model.VideoQuality) string {
	return fmt.Sprintf("%d:%s", videoID, quality)
}

func (s *MemoryStore) ReserveVariant(_ context.Context, v *model.Variant) (*model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := variantNaturalKey(v.OriginalVideoID, v.Quality)
	if existing, ok := s.variants[key]; ok {
		existing.IsProcessing = true
		c := *existing
		return &c, nil
	}
	v.ID = s.next("variant")
	v.IsProcessing = true
	c := *v
	s.variants[key] = &c
	out := *v
	return &out, nil
}

func (s *MemoryStore) GetVariant(_ context.Context, videoID int64, quality model.VideoQuality) (*model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantNaturalKey(videoID, quality)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *v
	return &c, nil
}

func (s *MemoryStore) UpdateVariant(_ context.Context, v *model.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := variantNaturalKey(v.OriginalVideoID, v.Quality)
	if _, ok := s.variants[key]; !ok {
		return ErrNotFound
	}
	c := *v
	s.variants[key] = &c
	return nil
}

func (s *MemoryStore) ListVariantsByVideo(_ context.Context, videoID int64) ([]*model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Variant, 0)
	for _, v := range s.variants {
		if v.OriginalVideoID == videoID {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}
