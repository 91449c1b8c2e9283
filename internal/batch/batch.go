// Package batch runs one pipeline over many images concurrently.
//
// Every image is processed by its own clone of the configured pipeline, so
// tool memos never cross images and no state is shared between workers.
// Cancellation is checked between images only; an image already running
// finishes.
package batch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/region"
)

// MaxConcurrency caps the number of images processed at the same time.
const MaxConcurrency = 16

// Outcome is the result of one image.
type Outcome struct {
	Index  int
	Path   string
	Report *pipeline.RunReport
}

// Success reports whether the image was processed without error.
func (o Outcome) Success() bool {
	return o.Report != nil && o.Report.Success
}

// Summary aggregates a batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Elapsed   time.Duration

	// ErrorCounts counts the errors of failed images per kind.
	ErrorCounts map[pipeline.ErrorKind]int

	// Outcomes holds one entry per processed image, in input order. Images
	// skipped after cancellation have no entry.
	Outcomes []Outcome
}

// Runner processes images with a shared pipeline configuration.
type Runner struct {
	base        *pipeline.Pipeline
	concurrency int
	logger      *slog.Logger
	check       imaging.SourceCheck
	regions     *region.Registry
	progress    func(Outcome)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for batch-level logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConcurrency sets the number of concurrent workers, capped at
// MaxConcurrency. Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = min(n, MaxConcurrency)
		}
	}
}

// WithSourceCheck replaces imaging.DefaultSourceCheck.
func WithSourceCheck(check imaging.SourceCheck) Option {
	return func(r *Runner) { r.check = check }
}

// WithRegions sets regions known before every run.
func WithRegions(regions *region.Registry) Option {
	return func(r *Runner) { r.regions = regions }
}

// WithProgress registers a callback invoked after every image. It is called
// from worker goroutines.
func WithProgress(fn func(Outcome)) Option {
	return func(r *Runner) { r.progress = fn }
}

// New creates a Runner for p. p itself is never run; workers run clones.
func New(p *pipeline.Pipeline, opts ...Option) *Runner {
	r := &Runner{
		base:        p,
		concurrency: min(runtime.NumCPU(), MaxConcurrency),
		logger:      slog.Default(),
		check:       imaging.DefaultSourceCheck,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes paths and returns their summary. The error is non-nil only
// when ctx was cancelled; per-image failures are reported in the summary.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	r.logger.Info("starting batch", "images", len(paths), "concurrency", r.concurrency)

	outcomes := make([]*Outcome, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := r.process(i, path)

			mu.Lock()
			outcomes[i] = &o
			mu.Unlock()
			if r.progress != nil {
				r.progress(o)
			}
			return nil
		})
	}
	err := g.Wait()

	s := summarize(outcomes)
	s.Elapsed = time.Since(start)
	r.logger.Info("batch complete", "images", s.Total, "succeeded", s.Succeeded,
		"failed", s.Failed, "skipped", s.Skipped, "elapsed", s.Elapsed)
	return s, err
}

func (r *Runner) process(index int, path string) Outcome {
	o := Outcome{Index: index, Path: path}

	img, err := imaging.ReadSource(path, r.check)
	if err != nil {
		se := pipeline.SourceIssue(err)
		o.Report = &pipeline.RunReport{Name: path, Message: se.Error(), Errors: []*pipeline.StageError{se}}
		r.logger.Warn("source rejected", "image", path, "error", err)
		return o
	}

	ictx := pipeline.NewImageContext(path, img, r.regions)
	o.Report = r.base.Clone().Run(ictx)
	return o
}

func summarize(outcomes []*Outcome) *Summary {
	s := &Summary{Total: len(outcomes), ErrorCounts: make(map[pipeline.ErrorKind]int)}
	for _, o := range outcomes {
		if o == nil {
			s.Skipped++
			continue
		}
		s.Outcomes = append(s.Outcomes, *o)
		if o.Success() {
			s.Succeeded++
			continue
		}
		s.Failed++
		var c pipeline.Collector
		for _, e := range o.Report.Errors {
			c.Add(e)
		}
		for k, n := range c.Counts() {
			s.ErrorCounts[k] += n
		}
	}
	return s
}

// CollectImages expands directories in paths into the image files they
// contain, recursively and in lexical order. Plain files are kept as given.
func CollectImages(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == p || imaging.IsImageFile(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
