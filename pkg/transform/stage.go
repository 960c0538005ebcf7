package transform

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gregpriday/copytree/pkg/cache"
	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/limiter"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/types"
)

// transform error markers are bounded so a verbose backend cannot flood
// the rendered output
const maxErrorMarkerLen = 200

// Options controls a transform stage run
type Options struct {
	// Disabled lists transformer names to skip. Entries match exactly,
	// case-insensitively, or by short name.
	Disabled []string

	// NoCache bypasses cache reads and writes even for cache-enabled
	// transformers
	NoCache bool

	// Workers bounds in-flight per-file goroutines. Zero means the
	// transform domain's budget.
	Workers int
}

// Stats summarizes a transform stage run
type Stats struct {
	TransformedCount int
	TransformErrors  int
	CacheHits        int
}

// Stage applies transformers to every file in a batch. Per-file failures
// are recorded on the file record; only cancellation or a cleared limiter
// aborts the stage.
type Stage struct {
	registry *Registry
	cache    *cache.Cache
	limits   *limiter.Manager
	opts     Options
	logger   zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

func NewStage(reg *Registry, c *cache.Cache, limits *limiter.Manager, opts Options) *Stage {
	return &Stage{
		registry: reg,
		cache:    c,
		limits:   limits,
		opts:     opts,
		logger:   logging.GetLogger("transform"),
	}
}

func (s *Stage) Name() string { return "transform" }

// BatchAction labels the file:batch event emitted after this stage
func (s *Stage) BatchAction() string { return "transformed" }

// Stats returns the counters from the most recent Run
func (s *Stage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run dispatches each file to its transformer. Output order matches input
// order regardless of completion order.
func (s *Stage) Run(ctx context.Context, batch *types.Batch) (*types.Batch, error) {
	s.mu.Lock()
	s.stats = Stats{}
	s.mu.Unlock()

	out := batch.Clone()

	workers := s.opts.Workers
	if workers <= 0 {
		workers = s.limits.Stats(limiter.DomainTransform).Budget
	}
	if workers <= 0 {
		workers = limiter.DefaultBudget
	}

	var bindings []types.TransformConfig
	if batch.Profile != nil {
		bindings = batch.Profile.Transforms
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, file := range out.Files {
		i, file := i, file
		group.Go(func() error {
			rec, err := s.processFile(gctx, file, bindings)
			if err != nil {
				return err
			}
			out.Files[i] = rec
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrStageFailed, "transform stage aborted")
	}

	// All transform calls are finished before rendering can start
	s.limits.Wait(limiter.DomainTransform)

	s.flushHeavy(ctx)

	stats := s.Stats()
	s.logger.Info().
		Int("files", len(out.Files)).
		Int("transformed", stats.TransformedCount).
		Int("errors", stats.TransformErrors).
		Int("cacheHits", stats.CacheHits).
		Msg("Transform stage complete")

	return out, nil
}

// HandleError converts a recoverable stage failure into an all-error batch
// so the run can still render. Anything else propagates and aborts the run.
func (s *Stage) HandleError(err error, batch *types.Batch) (*types.Batch, error) {
	if !errors.IsErrorCode(err, errors.ErrTransformFailed) {
		return nil, err
	}

	out := batch.Clone()
	for i, file := range out.Files {
		rec := file.Clone()
		rec.Err = err
		rec.Content = errorMarker(err)
		out.Files[i] = rec
	}
	out.RecoveredFromError = true

	s.logger.Warn().Err(err).Msg("Recovered transform stage failure into error batch")
	return out, nil
}

// processFile runs one file through its transformer. A per-file failure is
// recorded on the returned record; the returned error is reserved for
// cancellation and cleared-limiter aborts.
func (s *Stage) processFile(ctx context.Context, file *types.FileRecord, bindings []types.TransformConfig) (*types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tr := s.resolve(file, bindings)
	if tr == nil || disabledMatch(tr.Name(), s.opts.Disabled) {
		return file, nil
	}

	var (
		content string
		hit     bool
		err     error
	)

	if tr.CacheEnabled() && !s.opts.NoCache && s.cache != nil {
		var entry *cache.Entry
		entry, hit, err = s.cache.GetOrCompute(ctx, file.Path, file.Content, func() (*cache.Entry, error) {
			text, invokeErr := s.invoke(ctx, tr, file)
			if invokeErr != nil {
				return nil, invokeErr
			}
			by := ""
			if text != "" {
				by = tr.Name()
			}
			return &cache.Entry{Content: text, TransformedBy: by}, nil
		})
		if err == nil {
			content = entry.Content
		}
	} else {
		content, err = s.invoke(ctx, tr, file)
	}

	if err != nil {
		if abortErr := abortCause(ctx, err); abortErr != nil {
			return nil, abortErr
		}

		s.mu.Lock()
		s.stats.TransformErrors++
		s.mu.Unlock()

		s.logger.Warn().Err(err).Str("path", file.Path).Str("transformer", tr.Name()).Msg("Transform failed")

		rec := file.Clone()
		rec.Err = errors.Wrapf(err, errors.ErrTransformFailed, "transformer %s failed for %s", tr.Name(), file.Path)
		rec.Content = errorMarker(err)
		return rec, nil
	}

	if hit {
		s.mu.Lock()
		s.stats.CacheHits++
		s.mu.Unlock()
	}

	// Empty content means the transformer declined; the record passes
	// through unchanged.
	if content == "" {
		return file, nil
	}

	s.mu.Lock()
	s.stats.TransformedCount++
	s.mu.Unlock()

	rec := file.Clone()
	rec.Content = []byte(content)
	rec.Encoding = "utf-8"
	if enc, ok := tr.(Encoder); ok {
		rec.Encoding = enc.OutputEncoding()
	}
	rec.Transformed = true
	rec.TransformedBy = tr.Name()
	return rec, nil
}

// resolve picks the transformer for a file. Profile bindings (file pattern
// to named transformer) take precedence over the capability probe; a
// binding naming an unregistered transformer is skipped.
func (s *Stage) resolve(file *types.FileRecord, bindings []types.TransformConfig) Transformer {
	for _, b := range bindings {
		for _, pattern := range b.Files {
			ok, err := doublestar.Match(pattern, file.Path)
			if err != nil || !ok {
				continue
			}
			tr, getErr := s.registry.Get(b.Transformer)
			if getErr != nil {
				s.logger.Debug().Str("transformer", b.Transformer).Str("path", file.Path).Msg("Bound transformer not registered")
				continue
			}
			return tr
		}
	}
	return s.registry.ForFile(file)
}

// invoke runs the transformer under the transform concurrency domain
func (s *Stage) invoke(ctx context.Context, tr Transformer, file *types.FileRecord) (string, error) {
	var content string
	err := s.limits.Do(ctx, limiter.DomainTransform, func() error {
		var trErr error
		content, trErr = tr.Transform(ctx, file)
		return trErr
	})
	return content, err
}

// flushHeavy finalizes every heavy transformer exactly once, whether or not
// it was invoked during this run
func (s *Stage) flushHeavy(ctx context.Context) {
	for _, tr := range s.registry.Heavy() {
		fl, ok := tr.(Flusher)
		if !ok {
			continue
		}
		if err := fl.Flush(ctx); err != nil {
			s.mu.Lock()
			s.stats.TransformErrors++
			s.mu.Unlock()
			s.logger.Warn().Err(err).Str("transformer", tr.Name()).Msg("Flush failed")
		}
	}
}

// abortCause returns a non-nil error when err should abort the whole stage
// rather than annotate a single file
func abortCause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.IsErrorCode(err, errors.ErrLimiterCleared) {
		return err
	}
	return nil
}

func errorMarker(err error) []byte {
	msg := err.Error()
	if len(msg) > maxErrorMarkerLen {
		msg = msg[:maxErrorMarkerLen]
	}
	return []byte(fmt.Sprintf("[Transform error: %s]", msg))
}
