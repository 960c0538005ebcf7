package stages

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/render"
	"github.com/gregpriday/copytree/pkg/types"
)

// Render produces the final document. Output always lands in the batch;
// when a writer is configured the document is additionally streamed to it
// as the renderer produces chunks.
type Render struct {
	renderer render.Renderer
	writer   io.Writer
	logger   zerolog.Logger

	mu     sync.Mutex
	chunks [][]byte
}

// NewRender creates the render stage. writer may be nil for buffered-only
// output.
func NewRender(renderer render.Renderer, writer io.Writer) *Render {
	return &Render{
		renderer: renderer,
		writer:   writer,
		logger:   logging.GetLogger("stages.render"),
	}
}

func (r *Render) Name() string { return "render" }

// HandleError does not recover: a render failure leaves no usable output
func (r *Render) HandleError(err error, _ *types.Batch) (*types.Batch, error) {
	return nil, err
}

// Chunks returns the writes the renderer produced, in order
func (r *Render) Chunks() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.chunks))
	copy(out, r.chunks)
	return out
}

func (r *Render) Run(ctx context.Context, batch *types.Batch) (*types.Batch, error) {
	r.mu.Lock()
	r.chunks = nil
	r.mu.Unlock()

	var buf bytes.Buffer
	sink := io.Writer(&chunkRecorder{stage: r, next: &buf})
	if r.writer != nil {
		sink = io.MultiWriter(sink, r.writer)
	}

	if err := r.renderer.Render(ctx, batch, sink); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStageFailed, "%s render failed", r.renderer.Name())
	}

	out := batch.Clone()
	out.Output = buf.Bytes()

	r.logger.Info().
		Str("format", r.renderer.Name()).
		Int("bytes", len(out.Output)).
		Msg("Render complete")
	return out, nil
}

// chunkRecorder tees renderer writes into the stage's chunk log
type chunkRecorder struct {
	stage *Render
	next  io.Writer
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	c.stage.mu.Lock()
	c.stage.chunks = append(c.stage.chunks, chunk)
	c.stage.mu.Unlock()

	return c.next.Write(p)
}
