// Package work implements the bounded scheduler that downloads and
// unpacks the packages in a resolved closure (spec.md §4.E). Splatting is
// a separate barrier stage run by the caller once every job reaches
// Unpacked.
package work

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/wincrt/xwin/internal/fetch"
)

// maxDownloadAttempts and initialDownloadBackoff implement spec.md §4.B's
// "the scheduler may retry a fixed number of times with exponential
// backoff for transient kinds only (Network, Timeout, 5xx)".
const (
	maxDownloadAttempts   = 3
	initialDownloadBackoff = 500 * time.Millisecond
)

// State is one step of a package job's life cycle.
type State int

const (
	Pending State = iota
	Downloading
	Downloaded
	Unpacking
	Unpacked
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Downloading:
		return "downloading"
	case Downloaded:
		return "downloaded"
	case Unpacking:
		return "unpacking"
	case Unpacked:
		return "unpacked"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PackageJob is one unit of scheduled work: download then unpack a single
// manifest package.
type PackageJob struct {
	ID           string
	Version      string
	TotalBytes   int64 // sum of payload sizes; 0 means indeterminate
	Download     func(ctx context.Context, progress func(delta int64)) error
	Unpack       func(ctx context.Context) error
}

// Result is the outcome of running one PackageJob to completion.
type Result struct {
	Job   PackageJob
	State State
	Err   error
}

// Scheduler runs a fixed set of jobs with bounded parallelism, exactly the
// shape of internal/batch/batch.go's scheduler generalized from "build a
// package" to "download, then unpack, a package" — and simplified to a
// flat worker pool rather than a dependency graph, since spec.md §4.E
// only requires downloads/unpacks of independent packages to run
// concurrently, not a build-order DAG.
type Scheduler struct {
	Workers int

	statusMu sync.Mutex
	status   []string
	last     time.Time
}

var isTerminal = func() bool {
	return isatty.IsTerminal(uintptr(1))
}()

func (s *Scheduler) refreshStatus() {
	if !isTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	for _, line := range s.status {
		fmt.Println(line)
	}
	if len(s.status) > 0 {
		fmt.Printf("\033[%dA", len(s.status))
	}
}

func (s *Scheduler) updateStatus(idx int, line string) {
	if !isTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if idx >= len(s.status) {
		return
	}
	if diff := len(s.status[idx]) - len(line); diff > 0 {
		line += strings.Repeat(" ", diff)
	}
	s.status[idx] = line
	if time.Since(s.last) < 100*time.Millisecond {
		return
	}
	s.last = time.Now()
	for _, l := range s.status {
		fmt.Println(l)
	}
	fmt.Printf("\033[%dA", len(s.status))
}

// Run executes jobs with at most s.Workers concurrent, reporting each
// job's Result as it reaches Done or Failed through the returned channel.
// Run blocks until every job has been scheduled; callers range over the
// returned channel to collect results as they complete. Cancelling ctx
// stops enqueueing new jobs and causes in-flight jobs to return
// context.Canceled once their current I/O chunk finishes, matching
// spec.md §4.E's cancellation contract.
func (s *Scheduler) Run(ctx context.Context, jobs []PackageJob) <-chan Result {
	results := make(chan Result, len(jobs))
	if s.Workers <= 0 {
		s.Workers = 1
	}
	s.status = make([]string, s.Workers+1)

	work := make(chan PackageJob, len(jobs))
	for _, j := range jobs {
		work <- j
	}
	close(work)

	eg, ctx := errgroup.WithContext(ctx)
	var completed int32
	var mu sync.Mutex

	for w := 0; w < s.Workers; w++ {
		slot := w
		eg.Go(func() error {
			for job := range work {
				if err := ctx.Err(); err != nil {
					results <- Result{Job: job, State: Failed, Err: err}
					continue
				}
				res := s.runOne(ctx, slot+1, job)
				mu.Lock()
				completed++
				s.updateStatus(0, fmt.Sprintf("%d of %d packages done", completed, len(jobs)))
				mu.Unlock()
				results <- res
			}
			return nil
		})
	}

	go func() {
		eg.Wait()
		close(results)
	}()

	return results
}

func (s *Scheduler) runOne(ctx context.Context, slot int, job PackageJob) Result {
	s.updateStatus(slot, "downloading "+job.ID)
	var downloaded int64
	progress := func(delta int64) {
		downloaded += delta
		if job.TotalBytes > 0 {
			s.updateStatus(slot, fmt.Sprintf("downloading %s (%d/%d bytes)", job.ID, downloaded, job.TotalBytes))
		} else {
			s.updateStatus(slot, fmt.Sprintf("downloading %s (%d bytes)", job.ID, downloaded))
		}
	}
	if job.Download != nil {
		if err := s.downloadWithRetry(ctx, slot, job, progress); err != nil {
			return Result{Job: job, State: Failed, Err: xerrors.Errorf("downloading %s: %w", job.ID, err)}
		}
	}

	s.updateStatus(slot, "unpacking "+job.ID)
	if job.Unpack != nil {
		if err := job.Unpack(ctx); err != nil {
			return Result{Job: job, State: Failed, Err: xerrors.Errorf("unpacking %s: %w", job.ID, err)}
		}
	}

	s.updateStatus(slot, "idle")
	return Result{Job: job, State: Done}
}

// downloadWithRetry runs job.Download, retrying with exponential backoff
// when the failure is one fetch.Retryable classifies as transient
// (spec.md §4.B). A non-retryable error, or exhausting
// maxDownloadAttempts, returns the last error as-is.
func (s *Scheduler) downloadWithRetry(ctx context.Context, slot int, job PackageJob, progress func(delta int64)) error {
	backoff := initialDownloadBackoff
	var err error
	for attempt := 1; attempt <= maxDownloadAttempts; attempt++ {
		err = job.Download(ctx, progress)
		if err == nil {
			return nil
		}
		if attempt == maxDownloadAttempts || !fetch.Retryable(err) {
			return err
		}
		s.updateStatus(slot, fmt.Sprintf("retrying %s (attempt %d/%d): %v", job.ID, attempt+1, maxDownloadAttempts, err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
