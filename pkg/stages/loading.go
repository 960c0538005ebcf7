package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gregpriday/copytree/pkg/detect"
	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/limiter"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/types"
)

// LoadingOptions configures the loading stage
type LoadingOptions struct {
	// MaxFileSize caps how many bytes are read per file. Zero means no cap.
	MaxFileSize int64

	// StructureOnly lists doublestar patterns whose matches keep only
	// their path in the output
	StructureOnly []string

	// BinaryPolicy "skip" drops binary content at load time. Other
	// policies are applied by the binary transformer downstream.
	BinaryPolicy string

	// Retries is how many times a failed read is retried before the
	// record is annotated with the error
	Retries int

	// RetryDelay is the initial backoff, doubling per attempt
	RetryDelay time.Duration

	// Detect configures binary classification sampling
	Detect detect.Options
}

// Loading reads file content, classifies it, and applies size and
// structure-only policies. Reads run concurrently under the io domain
// budget. A file that cannot be read after retries is annotated, never
// dropped.
type Loading struct {
	limits *limiter.Manager
	opts   LoadingOptions
	logger zerolog.Logger
}

func NewLoading(limits *limiter.Manager, opts LoadingOptions) *Loading {
	if opts.Detect.SampleBytes == 0 {
		opts.Detect = detect.DefaultOptions()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	return &Loading{
		limits: limits,
		opts:   opts,
		logger: logging.GetLogger("stages.loading"),
	}
}

func (l *Loading) Name() string        { return "loading" }
func (l *Loading) BatchAction() string { return "processed" }

// HandleError does not recover: Run only fails on cancellation
func (l *Loading) HandleError(err error, _ *types.Batch) (*types.Batch, error) {
	return nil, err
}

func (l *Loading) Run(ctx context.Context, batch *types.Batch) (*types.Batch, error) {
	out := batch.Clone()

	workers := l.limits.Stats(limiter.DomainIO).Budget
	if workers <= 0 {
		workers = limiter.DefaultBudget
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, rec := range out.Files {
		i, rec := i, rec
		group.Go(func() error {
			loaded, err := l.loadFile(gctx, rec)
			if err != nil {
				return err
			}
			out.Files[i] = loaded
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrStageFailed, "loading stage aborted")
	}

	l.logger.Info().Int("files", len(out.Files)).Msg("Loading complete")
	return out, nil
}

// loadFile produces the loaded record. The returned error is reserved for
// cancellation; read failures are recorded on the record itself.
func (l *Loading) loadFile(ctx context.Context, rec *types.FileRecord) (*types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loaded := rec.Clone()

	structOnly, err := l.structureOnly(ctx, rec.Path)
	if err != nil {
		return nil, err
	}
	if structOnly {
		loaded.StructureOnly = true
		return loaded, nil
	}

	var content []byte
	truncated := false
	err = l.limits.Do(ctx, limiter.DomainIO, func() error {
		var readErr error
		content, truncated, readErr = l.readWithRetry(ctx, rec.AbsolutePath)
		return readErr
	})
	if err != nil {
		if ctx.Err() != nil || errors.IsErrorCode(err, errors.ErrLimiterCleared) {
			return nil, err
		}
		l.logger.Warn().Err(err).Str("path", rec.Path).Msg("Read failed after retries")
		loaded.Err = err
		return loaded, nil
	}

	result := detect.Classify(rec.AbsolutePath, head(content, l.opts.Detect.SampleBytes), l.opts.Detect)
	loaded.IsBinary = result.IsBinary
	loaded.BinaryCategory = string(result.Category)
	loaded.MimeType = detect.MimeType(rec.AbsolutePath, head(content, 512))

	if result.IsBinary && l.opts.BinaryPolicy == "skip" {
		loaded.StructureOnly = true
		return loaded, nil
	}

	if truncated {
		loaded.Truncated = true
		if !result.IsBinary {
			dropped := rec.Size - int64(len(content))
			content = append(content, []byte(fmt.Sprintf("\n[Truncated: %d bytes omitted]", dropped))...)
		}
	}

	loaded.Content = content
	loaded.Encoding = "utf-8"
	return loaded, nil
}

// readWithRetry reads at most MaxFileSize bytes, retrying transient
// failures with doubling backoff. The bool reports whether the cap cut
// the content short.
func (l *Loading) readWithRetry(ctx context.Context, path string) ([]byte, bool, error) {
	delay := l.opts.RetryDelay

	var lastErr error
	for attempt := 0; attempt <= l.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		content, truncated, err := l.readCapped(path)
		if err == nil {
			return content, truncated, nil
		}
		if os.IsNotExist(err) {
			// Deleted between discovery and loading; retrying cannot help
			return nil, false, errors.Wrapf(err, errors.ErrFileNotFound, "file vanished: %s", path)
		}
		lastErr = err
	}
	return nil, false, errors.Wrapf(lastErr, errors.ErrFileRead, "read failed after %d attempts", l.opts.Retries+1)
}

func (l *Loading) readCapped(path string) ([]byte, bool, error) {
	if l.opts.MaxFileSize <= 0 {
		content, err := os.ReadFile(path)
		return content, false, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	// Read one byte past the cap to tell a file at exactly the cap from
	// one that was cut
	content, err := io.ReadAll(io.LimitReader(f, l.opts.MaxFileSize+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(content)) > l.opts.MaxFileSize {
		return content[:l.opts.MaxFileSize], true, nil
	}
	return content, false, nil
}

// structureOnly matches relPath against the configured patterns under the
// glob domain budget
func (l *Loading) structureOnly(ctx context.Context, relPath string) (bool, error) {
	if len(l.opts.StructureOnly) == 0 {
		return false, nil
	}

	matched := false
	err := l.limits.Do(ctx, limiter.DomainGlob, func() error {
		for _, pattern := range l.opts.StructureOnly {
			if ok, matchErr := doublestar.Match(pattern, relPath); matchErr == nil && ok {
				matched = true
				return nil
			}
		}
		return nil
	})
	return matched, err
}

func head(b []byte, n int) []byte {
	if n > 0 && len(b) > n {
		return b[:n]
	}
	return b
}
