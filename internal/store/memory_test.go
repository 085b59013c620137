package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/api/internal/model"
)

func TestMemoryStoreJobCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	job := &model.Job{
		ID:        "job-1",
		JobType:   model.JobTypeTrim,
		Status:    model.JobStatusPending,
		VideoID:   7,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.JobType != model.JobTypeTrim || got.Status != model.JobStatusPending {
		t.Errorf("unexpected job: %+v", got)
	}

	// Mutating the returned copy must not leak into the store.
	got.Status = model.JobStatusFailed
	again, _ := s.GetJob(ctx, "job-1")
	if again.Status != model.JobStatusPending {
		t.Error("GetJob returned a shared reference, not a copy")
	}

	got.Status = model.JobStatusProcessing
	if err := s.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	updated, _ := s.GetJob(ctx, "job-1")
	if updated.Status != model.JobStatusProcessing {
		t.Errorf("status = %s after update", updated.Status)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(missing) = %v, want ErrNotFound", err)
	}
	if err := s.UpdateJob(ctx, &model.Job{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListJobsByVideo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, id := range []string{"a", "b"} {
		if err := s.CreateJob(ctx, &model.Job{ID: id, VideoID: 1, Status: model.JobStatusPending}); err != nil {
			t.Fatalf("CreateJob(%s): %v", id, err)
		}
	}
	if err := s.CreateJob(ctx, &model.Job{ID: "c", VideoID: 2, Status: model.JobStatusPending}); err != nil {
		t.Fatalf("CreateJob(c): %v", err)
	}

	jobs, err := s.ListJobsByVideo(ctx, 1)
	if err != nil {
		t.Fatalf("ListJobsByVideo: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "a" || jobs[1].ID != "b" {
		t.Errorf("jobs out of submission order: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestMemoryStoreVideoIDsAndPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		v := &model.Video{Filename: "f.mp4", UploadTime: time.Now().UTC()}
		if err := s.CreateVideo(ctx, v); err != nil {
			t.Fatalf("CreateVideo: %v", err)
		}
		if v.ID != int64(i+1) {
			t.Errorf("CreateVideo assigned id %d, want %d", v.ID, i+1)
		}
	}

	videos, total, err := s.ListVideos(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(videos) != 2 || videos[0].ID != 2 || videos[1].ID != 3 {
		t.Errorf("unexpected page: %+v", videos)
	}

	videos, total, err = s.ListVideos(ctx, 10, 2)
	if err != nil {
		t.Fatalf("ListVideos past end: %v", err)
	}
	if total != 5 || len(videos) != 0 {
		t.Errorf("past-end page: len=%d total=%d", len(videos), total)
	}
}

func TestMemoryStoreReserveVariantIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.ReserveVariant(ctx, &model.Variant{
		OriginalVideoID: 1,
		Quality:         model.Quality720p,
		Filename:        "720p_1_processing.mp4",
	})
	if err != nil {
		t.Fatalf("ReserveVariant: %v", err)
	}
	if first.ID == 0 {
		t.Error("reservation did not assign an id")
	}
	if !first.IsProcessing {
		t.Error("reservation must flag the row processing")
	}

	// A repeat reservation returns the existing row, never a duplicate.
	second, err := s.ReserveVariant(ctx, &model.Variant{
		OriginalVideoID: 1,
		Quality:         model.Quality720p,
		Filename:        "different.mp4",
	})
	if err != nil {
		t.Fatalf("repeat ReserveVariant: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat reservation created new row: id %d vs %d", second.ID, first.ID)
	}
	if second.Filename != first.Filename {
		t.Errorf("repeat reservation overwrote filename: %q", second.Filename)
	}

	list, err := s.ListVariantsByVideo(ctx, 1)
	if err != nil {
		t.Fatalf("ListVariantsByVideo: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(variants) = %d, want 1", len(list))
	}

	// A different quality is a different natural key.
	other, err := s.ReserveVariant(ctx, &model.Variant{OriginalVideoID: 1, Quality: model.Quality480p})
	if err != nil {
		t.Fatalf("ReserveVariant(480p): %v", err)
	}
	if other.ID == first.ID {
		t.Error("different quality reused the same row")
	}
}

func TestMemoryStoreReserveVariantReflagsSettledRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := s.ReserveVariant(ctx, &model.Variant{OriginalVideoID: 3, Quality: model.Quality360p})
	if err != nil {
		t.Fatalf("ReserveVariant: %v", err)
	}

	v.IsProcessing = false
	v.Filename = "360p_done.mp4"
	if err := s.UpdateVariant(ctx, v); err != nil {
		t.Fatalf("UpdateVariant: %v", err)
	}

	// Re-reserving a settled variant flags it processing again in place.
	again, err := s.ReserveVariant(ctx, &model.Variant{OriginalVideoID: 3, Quality: model.Quality360p})
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if again.ID != v.ID {
		t.Errorf("re-reserve created new row: id %d vs %d", again.ID, v.ID)
	}
	if !again.IsProcessing {
		t.Error("re-reserve did not flag the row processing")
	}
	if again.Filename != "360p_done.mp4" {
		t.Errorf("re-reserve clobbered existing data: %q", again.Filename)
	}
}

func TestMemoryStoreReserveVariantConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const workers = 16
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.ReserveVariant(ctx, &model.Variant{
				OriginalVideoID: 9,
				Quality:         model.Quality720p,
			})
			errs[i] = err
			if err == nil {
				ids[i] = v.ID
			}
		}(i)
	}
	wg.Wait()

	// Every racer lands on the same row.
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("racer %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("racer %d got row %d, racer 0 got %d", i, ids[i], ids[0])
		}
	}

	list, err := s.ListVariantsByVideo(ctx, 9)
	if err != nil {
		t.Fatalf("ListVariantsByVideo: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(variants) = %d after %d concurrent reservations, want 1", len(list), workers)
	}
}

func TestMemoryStoreDerivedArtifacts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tv := &model.TrimmedVideo{OriginalVideoID: 1, Filename: "trimmed.mp4", Duration: 10}
	if err := s.CreateTrimmedVideo(ctx, tv); err != nil {
		t.Fatalf("CreateTrimmedVideo: %v", err)
	}
	if tv.ID == 0 {
		t.Error("CreateTrimmedVideo did not assign an id")
	}
	got, err := s.GetTrimmedVideo(ctx, tv.ID)
	if err != nil {
		t.Fatalf("GetTrimmedVideo: %v", err)
	}
	if got.Duration != 10 {
		t.Errorf("duration = %v", got.Duration)
	}
	trims, err := s.ListTrimmedByVideo(ctx, 1)
	if err != nil || len(trims) != 1 {
		t.Fatalf("ListTrimmedByVideo: %v, len=%d", err, len(trims))
	}
	if trims, _ := s.ListTrimmedByVideo(ctx, 2); len(trims) != 0 {
		t.Errorf("trimmed list leaked across videos: %d", len(trims))
	}

	o := &model.Overlay{VideoID: 1, OverlayType: model.OverlayText, Content: "hi"}
	if err := s.CreateOverlay(ctx, o); err != nil {
		t.Fatalf("CreateOverlay: %v", err)
	}
	overlays, err := s.ListOverlaysByVideo(ctx, 1)
	if err != nil || len(overlays) != 1 {
		t.Fatalf("ListOverlaysByVideo: %v, len=%d", err, len(overlays))
	}

	w := &model.Watermark{VideoID: 1, WatermarkPath: "wm.png", Opacity: 0.5}
	if err := s.CreateWatermark(ctx, w); err != nil {
		t.Fatalf("CreateWatermark: %v", err)
	}
	watermarks, err := s.ListWatermarksByVideo(ctx, 1)
	if err != nil || len(watermarks) != 1 {
		t.Fatalf("ListWatermarksByVideo: %v, len=%d", err, len(watermarks))
	}
}
