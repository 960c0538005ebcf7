// Package stages holds the concrete pipeline stages: discovery, filtering,
// loading, transformation is in pkg/transform, and rendering.
package stages

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/limiter"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/types"
)

// defaultIgnores are never scanned regardless of profile
var defaultIgnores = []string{".git", ".copytree"}

// Discovery walks the scan root and any external sources, producing one
// record per regular file with path metadata only. Content is read by the
// loading stage.
type Discovery struct {
	limits  *limiter.Manager
	ignores []string
	logger  zerolog.Logger
}

// NewDiscovery creates the discovery stage. ignores are doublestar
// patterns matched against posix-relative paths, in addition to the
// built-in ignore list.
func NewDiscovery(limits *limiter.Manager, ignores []string) *Discovery {
	return &Discovery{
		limits:  limits,
		ignores: ignores,
		logger:  logging.GetLogger("stages.discovery"),
	}
}

func (d *Discovery) Name() string        { return "discovery" }
func (d *Discovery) BatchAction() string { return "discovered" }

// HandleError does not recover: without discovered files there is nothing
// downstream to salvage
func (d *Discovery) HandleError(err error, _ *types.Batch) (*types.Batch, error) {
	return nil, err
}

func (d *Discovery) Run(ctx context.Context, batch *types.Batch) (*types.Batch, error) {
	out := batch.Clone()

	var files []*types.FileRecord
	err := d.limits.Do(ctx, limiter.DomainDiscovery, func() error {
		found, walkErr := d.walk(ctx, batch.Root, "", "")
		if walkErr != nil {
			return walkErr
		}
		files = found

		if batch.Profile == nil {
			return nil
		}
		for _, src := range batch.Profile.External {
			root := src.Source
			if !filepath.IsAbs(root) {
				root = filepath.Join(batch.Root, root)
			}
			dest := externalDestination(src)

			external, walkErr := d.walk(ctx, root, dest, dest)
			if walkErr != nil {
				// A missing external source degrades to a warning; the
				// main tree still renders
				d.logger.Warn().Err(walkErr).Str("source", src.Source).Msg("Skipping external source")
				continue
			}
			files = append(files, external...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Files = files
	d.logger.Info().Int("files", len(files)).Str("root", batch.Root).Msg("Discovery complete")
	return out, nil
}

// externalDestination resolves where an external source mounts in the
// rendered tree: its declared destination, or the source's base name.
// Filtering uses the same resolution to find the source behind an Origin.
func externalDestination(src types.ExternalSource) string {
	if src.Destination != "" {
		return src.Destination
	}
	return path.Base(filepath.ToSlash(src.Source))
}

// walk collects regular files under root. prefix is prepended to relative
// paths; origin tags records from external sources.
func (d *Discovery) walk(ctx context.Context, root, prefix, origin string) ([]*types.FileRecord, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileStat, "cannot scan %s", root)
	}

	var files []*types.FileRecord
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are skipped, not fatal
			d.logger.Warn().Err(err).Str("path", p).Msg("Skipping unreadable entry")
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if entry.IsDir() {
			if d.ignored(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || d.ignored(rel) {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			d.logger.Warn().Err(infoErr).Str("path", p).Msg("Skipping unstatable file")
			return nil
		}

		recPath := rel
		if prefix != "" {
			recPath = path.Join(prefix, rel)
		}
		files = append(files, &types.FileRecord{
			Path:         recPath,
			AbsolutePath: p,
			Origin:       origin,
			Size:         info.Size(),
			MTime:        info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ignored matches rel against the built-in ignore names and the configured
// doublestar patterns
func (d *Discovery) ignored(rel string) bool {
	base := path.Base(rel)
	for _, name := range defaultIgnores {
		if base == name {
			return true
		}
	}
	for _, pattern := range d.ignores {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
