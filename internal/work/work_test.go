package work

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wincrt/xwin/internal/fetch"
)

func TestRunCompletesAllJobs(t *testing.T) {
	var downloads, unpacks int32
	jobs := make([]PackageJob, 10)
	for i := range jobs {
		jobs[i] = PackageJob{
			ID: "pkg",
			Download: func(ctx context.Context, progress func(int64)) error {
				atomic.AddInt32(&downloads, 1)
				progress(100)
				return nil
			},
			Unpack: func(ctx context.Context) error {
				atomic.AddInt32(&unpacks, 1)
				return nil
			},
		}
	}

	s := &Scheduler{Workers: 3}
	results := s.Run(context.Background(), jobs)

	var got int
	for r := range results {
		if r.State != Done {
			t.Fatalf("job %+v did not finish Done: %v", r.Job, r.Err)
		}
		got++
	}
	if got != len(jobs) {
		t.Fatalf("got %d results, want %d", got, len(jobs))
	}
	if int(downloads) != len(jobs) || int(unpacks) != len(jobs) {
		t.Fatalf("downloads=%d unpacks=%d, want %d each", downloads, unpacks, len(jobs))
	}
}

func TestRunReportsJobFailure(t *testing.T) {
	wantErr := errors.New("boom")
	jobs := []PackageJob{{
		ID:       "broken",
		Download: func(ctx context.Context, progress func(int64)) error { return wantErr },
	}}
	s := &Scheduler{Workers: 1}
	results := s.Run(context.Background(), jobs)
	r := <-results
	if r.State != Failed || r.Err == nil {
		t.Fatalf("expected a Failed result with an error, got %+v", r)
	}
}

func TestRunRetriesTransientDownloadFailures(t *testing.T) {
	var attempts int32
	jobs := []PackageJob{{
		ID: "flaky",
		Download: func(ctx context.Context, progress func(int64)) error {
			if atomic.AddInt32(&attempts, 1) < maxDownloadAttempts {
				return &fetch.Error{Kind: fetch.KindNetwork, URL: "https://example.invalid", Err: errors.New("connection reset")}
			}
			return nil
		},
	}}
	s := &Scheduler{Workers: 1}
	results := s.Run(context.Background(), jobs)
	r := <-results
	if r.State != Done {
		t.Fatalf("expected the job to eventually succeed, got %+v", r)
	}
	if int(attempts) != maxDownloadAttempts {
		t.Fatalf("got %d attempts, want %d", attempts, maxDownloadAttempts)
	}
}

func TestRunDoesNotRetryNonTransientDownloadFailures(t *testing.T) {
	var attempts int32
	jobs := []PackageJob{{
		ID: "not-found",
		Download: func(ctx context.Context, progress func(int64)) error {
			atomic.AddInt32(&attempts, 1)
			return &fetch.Error{Kind: fetch.KindHTTPStatus, URL: "https://example.invalid", StatusCode: 404}
		},
	}}
	s := &Scheduler{Workers: 1}
	results := s.Run(context.Background(), jobs)
	r := <-results
	if r.State != Failed {
		t.Fatalf("expected the job to fail without retrying, got %+v", r)
	}
	if attempts != 1 {
		t.Fatalf("got %d attempts for a non-retryable error, want 1", attempts)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []PackageJob{{
		ID:       "cancelled",
		Download: func(ctx context.Context, progress func(int64)) error { return nil },
	}}
	s := &Scheduler{Workers: 1}
	results := s.Run(ctx, jobs)

	select {
	case r := <-results:
		if r.State != Failed {
			t.Fatalf("expected cancellation to fail the job, got %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cancelled job result")
	}
}
