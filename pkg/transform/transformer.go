// Package transform dispatches per-file transformers, applies the caching
// policy, and isolates per-file failures from the rest of the run. The
// actual conversion backends (document converters, AI text and vision
// APIs) live behind the Transformer interface and are swappable.
package transform

import (
	"context"

	"github.com/gregpriday/copytree/pkg/types"
)

// Transformer converts a file's content into AI-consumable text.
//
// Transform returns the replacement content, or an empty string to signal
// "no change": the file record then passes through unmodified. Transformers
// whose work is expensive and cacheable report CacheEnabled true; their
// results are stored keyed by the input's content hash.
type Transformer interface {
	Name() string
	CanTransform(file *types.FileRecord) bool
	Transform(ctx context.Context, file *types.FileRecord) (string, error)
	CacheEnabled() bool
	IsHeavy() bool
}

// Encoder is implemented by transformers whose output is not plain UTF-8
// text. OutputEncoding is recorded on the file so renderers can label the
// content correctly.
type Encoder interface {
	OutputEncoding() string
}

// Flusher is implemented by heavy transformers that batch work across
// files and finalize it at end of stage. Flush is called exactly once per
// run for every registered heavy transformer, whether or not it saw a file.
type Flusher interface {
	Flush(ctx context.Context) error
}
