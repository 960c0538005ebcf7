// Package copytree wires configuration, profile resolution, the stage
// pipeline, and rendering into a single runnable snapshot operation. The
// CLI in cmd/copytree is a thin shell over Run.
package copytree

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/cache"
	"github.com/gregpriday/copytree/pkg/config"
	"github.com/gregpriday/copytree/pkg/detect"
	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/limiter"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/pipeline"
	"github.com/gregpriday/copytree/pkg/profile"
	"github.com/gregpriday/copytree/pkg/render"
	"github.com/gregpriday/copytree/pkg/stages"
	"github.com/gregpriday/copytree/pkg/transform"
	"github.com/gregpriday/copytree/pkg/types"
)

// Options selects what to scan and how to emit it
type Options struct {
	// Root is the directory to scan. Empty means the current directory.
	Root string

	// Profile is a profile name or path. Empty resolves the default
	// profile.
	Profile string

	// Format is "markdown" or "xml"
	Format string

	// Writer optionally receives the document as it renders
	Writer io.Writer

	// NoCache bypasses the transform cache for this run
	NoCache bool

	// InMemoryCache keeps transform results out of the on-disk store.
	// Used by tests and one-shot runs.
	InMemoryCache bool
}

// Summary reports what a run did
type Summary struct {
	Discovered  int
	Selected    int
	Transformed int
	Errors      int
	Duration    time.Duration
	OutputBytes int
}

// Result is a completed run
type Result struct {
	Output  []byte
	Summary Summary
}

// Run executes a full snapshot: discover, filter, load, transform, render
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := logging.GetLogger("copytree")

	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrFileStat, "resolving scan root")
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	prof, err := profile.NewLoader(root).Load(opts.Profile)
	if err != nil {
		return nil, err
	}

	limits := limiter.NewManager()
	limits.Initialize(cfg.Limits())

	renderer, err := pickRenderer(opts.Format)
	if err != nil {
		return nil, err
	}

	transformStage, err := buildTransformStage(cfg, limits, opts)
	if err != nil {
		return nil, err
	}

	detectOpts := detect.Options{
		SampleBytes:           cfg.GetInt("binary.sample_bytes", 8192),
		NonPrintableThreshold: cfg.GetFloat("binary.nonprintable_threshold", 0.30),
	}

	renderStage := stages.NewRender(renderer, opts.Writer)
	pipe := pipeline.New([]pipeline.Stage{
		stages.NewDiscovery(limits, cfg.GetStrings("discovery.ignore")),
		stages.NewFiltering(detectOpts),
		stages.NewLoading(limits, stages.LoadingOptions{
			MaxFileSize:   cfg.GetInt64("loading.max_file_size", 0),
			StructureOnly: cfg.GetStrings("loading.structure_only"),
			BinaryPolicy:  cfg.GetString("binary.policy", "placeholder"),
			Retries:       cfg.GetInt("loading.retries", 3),
			RetryDelay:    time.Duration(cfg.GetInt("loading.retry_delay_ms", 50)) * time.Millisecond,
			Detect:        detectOpts,
		}),
		transformStage,
		renderStage,
	}, limits)

	summary := observe(pipe, logger)

	batch, err := pipe.Process(ctx, &types.Batch{Root: root, Profile: prof})
	if err != nil {
		return nil, err
	}

	limits.WaitAll()

	summary.Transformed = transformStage.Stats().TransformedCount
	summary.Duration = pipe.Metrics().Duration()
	summary.OutputBytes = len(batch.Output)
	for _, f := range batch.Files {
		if f.Err != nil {
			summary.Errors++
		}
	}

	return &Result{Output: batch.Output, Summary: *summary}, nil
}

// observe subscribes counters to the pipeline's batch events
func observe(pipe *pipeline.Pipeline, logger zerolog.Logger) *Summary {
	summary := &Summary{}
	pipe.Events().On(pipeline.EventFileBatch, func(p pipeline.Payload) {
		count, _ := p["count"].(int)
		switch p["action"] {
		case "discovered":
			summary.Discovered = count
		case "filtered":
			summary.Selected = count
		}
	})
	pipe.Events().On(pipeline.EventStageComplete, func(p pipeline.Payload) {
		logger.Debug().
			Interface("stage", p["stage"]).
			Interface("duration", p["duration"]).
			Msg("Stage complete")
	})
	return summary
}

func pickRenderer(format string) (render.Renderer, error) {
	reg, err := render.NewRegistry()
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = "markdown"
	}
	renderer, err := reg.Get(format)
	if err != nil {
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown output format %q", format)
	}
	return renderer, nil
}

// buildTransformStage registers the built-in transformers and applies the
// transform configuration
func buildTransformStage(cfg *config.Config, limits *limiter.Manager, opts Options) (*transform.Stage, error) {
	reg := transform.NewRegistry()
	for _, t := range []transform.Transformer{
		&transform.Binary{Policy: cfg.GetString("binary.policy", "placeholder")},
		&transform.Truncate{MaxBytes: cfg.GetInt("transform.truncate_bytes", 0)},
	} {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}

	var store cache.Store
	if opts.InMemoryCache {
		store = cache.NewMemoryStore()
	} else {
		fileStore, err := cache.NewFileStore("")
		if err != nil {
			// A broken cache directory degrades to in-memory caching
			lg := logging.GetLogger("copytree")
			lg.Warn().Err(err).Msg("Falling back to in-memory cache")
			store = cache.NewMemoryStore()
		} else {
			store = fileStore
		}
	}

	return transform.NewStage(reg, cache.New(store), limits, transform.Options{
		Disabled: cfg.GetStrings("transform.disabled"),
		NoCache:  opts.NoCache || cfg.GetBool("transform.no_cache", false),
	}), nil
}
