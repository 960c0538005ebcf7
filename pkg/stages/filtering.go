package stages

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/detect"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/rules"
	"github.com/gregpriday/copytree/pkg/types"
)

// Filtering evaluates the resolved profile's rules against every
// discovered record. Content-dependent rule fields read the file lazily;
// metadata-only profiles never touch file bytes here.
type Filtering struct {
	engine     *rules.Engine
	detectOpts detect.Options
	logger     zerolog.Logger
}

func NewFiltering(detectOpts detect.Options) *Filtering {
	return &Filtering{
		engine:     rules.NewEngine(),
		detectOpts: detectOpts,
		logger:     logging.GetLogger("stages.filtering"),
	}
}

func (f *Filtering) Name() string        { return "filtering" }
func (f *Filtering) BatchAction() string { return "filtered" }

// HandleError does not recover: a filtering failure means selection is
// undefined, and rendering an unfiltered tree would leak excluded files
func (f *Filtering) HandleError(err error, _ *types.Batch) (*types.Batch, error) {
	return nil, err
}

func (f *Filtering) Run(ctx context.Context, batch *types.Batch) (*types.Batch, error) {
	out := batch.Clone()

	profile := batch.Profile
	if profile == nil {
		profile = &types.Profile{}
	}

	var selected []*types.FileRecord
	for _, rec := range batch.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		group := profile.Rules
		if rec.Origin != "" {
			group = externalRules(profile, rec.Origin)
		}

		view := newLazyView(rec, f.detectOpts)
		if f.engine.Matches(view, group, profile.GlobalExcludeRules, profile.Always) {
			selected = append(selected, rec)
		}
	}

	out.Files = selected
	f.logger.Info().
		Int("in", len(batch.Files)).
		Int("selected", len(selected)).
		Msg("Filtering complete")
	return out, nil
}

// externalRules returns the rule group of the external source whose
// resolved destination matches origin
func externalRules(profile *types.Profile, origin string) types.RuleGroup {
	for _, src := range profile.External {
		if externalDestination(src) == origin {
			return src.Rules
		}
	}
	return nil
}

// lazyView adapts a FileRecord to rules.FileView. Contents and binary
// classification are computed on first use and memoized, so rule sets that
// never reference them cost no IO.
type lazyView struct {
	rec  *types.FileRecord
	opts detect.Options

	contentsOnce sync.Once
	contents     []byte
	contentsErr  error

	classifyOnce sync.Once
	isBinary     bool
	mimeType     string
}

func newLazyView(rec *types.FileRecord, opts detect.Options) *lazyView {
	return &lazyView{rec: rec, opts: opts}
}

func (v *lazyView) Path() string     { return v.rec.Path }
func (v *lazyView) Size() int64      { return v.rec.Size }
func (v *lazyView) MTime() time.Time { return v.rec.MTime }

func (v *lazyView) Contents() ([]byte, error) {
	v.contentsOnce.Do(func() {
		v.contents, v.contentsErr = os.ReadFile(v.rec.AbsolutePath)
	})
	return v.contents, v.contentsErr
}

func (v *lazyView) IsBinary() bool {
	v.classify()
	return v.isBinary
}

func (v *lazyView) MimeType() string {
	v.classify()
	return v.mimeType
}

func (v *lazyView) classify() {
	v.classifyOnce.Do(func() {
		result := detect.Detect(v.rec.AbsolutePath, v.opts)
		v.isBinary = result.IsBinary

		sample, _ := readHead(v.rec.AbsolutePath, v.opts.SampleBytes)
		v.mimeType = detect.MimeType(v.rec.AbsolutePath, sample)
	})
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if read > 0 {
		return buf[:read], nil
	}
	return nil, err
}
