// Package worker runs independent compress and decompress file jobs on a
// bounded pool of goroutines.
package worker

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chriscow/irmcodec/pkg/codec"
	"github.com/chriscow/irmcodec/pkg/irm"
	"golang.org/x/sync/errgroup"
)

// Job kinds
const (
	JobCompress   = "compress"
	JobDecompress = "decompress"
)

// Job converts one file. Output is written atomically.
type Job struct {
	Kind   string
	Input  string
	Output string
}

// Result reports the outcome of one Job. On success Stats is set for
// compress jobs and Frames for decompress jobs; byte counts are file sizes.
type Result struct {
	Job         Job
	Stats       *codec.Stats
	Frames      int
	InputBytes  int64
	OutputBytes int64
	Elapsed     time.Duration
	Err         error
}

type Config struct {
	// Jobs bounds concurrent conversions; zero means GOMAXPROCS.
	Jobs int

	// FailFast stops scheduling new jobs after the first failure.
	FailFast bool

	Options codec.Options
}

type Worker struct {
	config Config
	logger *slog.Logger

	mu        sync.RWMutex
	completed int
	failed    int
	skipped   int
}

func New(config Config, logger *slog.Logger) *Worker {
	if config.Jobs <= 0 {
		config.Jobs = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{config: config, logger: logger}
}

// Run executes jobs and returns one Result per job, in input order. The
// returned error is the first job failure, or the context error if ctx was
// cancelled before every job started. Jobs that never ran carry that error.
func (w *Worker) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	w.logger.Info("Starting batch", slog.Int("jobs", len(jobs)), slog.Int("workers", w.config.Jobs))

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i].Job = job
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Jobs)

	var firstErr error
	var errOnce sync.Once
	record := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for i := range jobs {
		runCtx := ctx
		if w.config.FailFast {
			runCtx = gctx
		}
		if err := runCtx.Err(); err != nil {
			for j := i; j < len(jobs); j++ {
				results[j].Err = err
			}
			w.skip(len(jobs) - i)
			record(err)
			break
		}

		i := i
		g.Go(func() error {
			if err := runCtx.Err(); err != nil {
				results[i].Err = err
				w.skip(1)
				record(err)
				return err
			}
			w.handleJob(&results[i])
			if results[i].Err != nil {
				record(results[i].Err)
				if w.config.FailFast {
					return results[i].Err
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.Info("Batch complete",
		slog.Int("completed", w.Completed()),
		slog.Int("failed", w.Failed()),
		slog.Int("skipped", w.Skipped()))

	return results, firstErr
}

func (w *Worker) handleJob(res *Result) {
	job := res.Job
	w.logger.Debug("Processing job", slog.String("kind", job.Kind), slog.String("input", job.Input))

	start := time.Now()
	switch job.Kind {
	case JobCompress:
		res.Stats, res.Err = codec.CompressFile(job.Input, job.Output, w.config.Options)

	case JobDecompress:
		buf, err := codec.DecompressFile(job.Input, job.Output)
		if err == nil {
			res.Frames = buf.SamplesPerChannel()
		}
		res.Err = err

	default:
		res.Err = irm.Errorf(irm.ErrInvalidInput, "worker.handleJob", "unknown job kind %q", job.Kind)
	}
	if res.Err == nil {
		res.InputBytes = fileSize(job.Input)
		res.OutputBytes = fileSize(job.Output)
	}
	res.Elapsed = time.Since(start)

	w.mu.Lock()
	defer w.mu.Unlock()
	if res.Err != nil {
		w.failed++
		w.logger.Error("Job failed",
			slog.String("kind", job.Kind),
			slog.String("input", job.Input),
			slog.String("error", res.Err.Error()))
		return
	}
	w.completed++
	w.logger.Info("Job complete",
		slog.String("kind", job.Kind),
		slog.String("input", job.Input),
		slog.String("output", job.Output),
		slog.Duration("elapsed", res.Elapsed))
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// Completed returns the number of jobs that succeeded so far.
func (w *Worker) Completed() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.completed
}

// Failed returns the number of jobs that ran and failed so far.
func (w *Worker) Failed() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.failed
}

// Skipped returns the number of jobs never run because the context was done.
func (w *Worker) Skipped() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.skipped
}

func (w *Worker) skip(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skipped += n
}
