// Package pipeline runs an ordered list of stages over a file batch with
// observability events, per-stage metrics, and stage-level error recovery.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/limiter"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/types"
)

// Stage is one step of a run. Run receives the previous stage's batch and
// returns a new one. When Run fails, HandleError may convert the failure
// into a recovered batch to keep the run alive, or return an error to
// abort the whole pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, batch *types.Batch) (*types.Batch, error)
	HandleError(err error, batch *types.Batch) (*types.Batch, error)
}

// BatchReporter is implemented by stages whose completion should emit a
// file:batch event. The action labels what happened to the files
// (discovered, filtered, processed, transformed).
type BatchReporter interface {
	BatchAction() string
}

// State of a pipeline
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Pipeline executes stages in declared order
type Pipeline struct {
	stages  []Stage
	bus     *EventBus
	limits  *limiter.Manager
	metrics *Metrics
	logger  zerolog.Logger

	stateMu sync.Mutex
	state   State
}

// New creates a Pipeline over the given stages. limits is the manager
// shared with the stages; it is cleared when a run aborts so queued work
// does not outlive the run. A nil manager uses the package default.
func New(stages []Stage, limits *limiter.Manager) *Pipeline {
	if limits == nil {
		limits = limiter.Default()
	}
	return &Pipeline{
		stages:  stages,
		bus:     NewEventBus(),
		limits:  limits,
		metrics: newMetrics(),
		logger:  logging.GetLogger("pipeline"),
		state:   StateIdle,
	}
}

// Events returns the pipeline's event bus for subscriber registration
func (p *Pipeline) Events() *EventBus { return p.bus }

// Metrics returns the pipeline's accumulated run metrics
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// State returns the pipeline's current state
func (p *Pipeline) State() State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Process runs the batch through every stage in order. A stage failure
// that its HandleError cannot recover aborts the run, clears queued
// limiter work, and is returned wrapped with the failing stage's name.
func (p *Pipeline) Process(ctx context.Context, input *types.Batch) (*types.Batch, error) {
	p.stateMu.Lock()
	if p.state == StateRunning {
		p.stateMu.Unlock()
		return nil, errors.New(errors.ErrPipelineAborted, "pipeline is already running")
	}
	p.state = StateRunning
	p.stateMu.Unlock()

	p.metrics.begin()

	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	p.bus.Emit(EventPipelineStart, Payload{
		"stages": names,
		"files":  len(input.Files),
		"root":   input.Root,
	})
	p.logger.Info().Strs("stages", names).Int("files", len(input.Files)).Msg("Pipeline starting")

	batch := input
	for _, stage := range p.stages {
		out, err := p.runStage(ctx, stage, batch)
		if err != nil {
			p.abort(stage, err)
			return nil, errors.Wrapf(err, errors.ErrPipelineAborted, "stage %s failed", stage.Name())
		}
		batch = out
	}

	p.metrics.finish()
	p.setState(StateCompleted)

	p.bus.Emit(EventPipelineComplete, Payload{
		"files":    len(batch.Files),
		"duration": p.metrics.Duration(),
	})
	p.logger.Info().Dur("duration", p.metrics.Duration()).Int("files", len(batch.Files)).Msg("Pipeline complete")

	return batch, nil
}

// runStage executes one stage with events and metrics, applying the
// stage's own error recovery on failure
func (p *Pipeline) runStage(ctx context.Context, stage Stage, batch *types.Batch) (*types.Batch, error) {
	p.bus.Emit(EventStageStart, Payload{
		"stage": stage.Name(),
		"files": len(batch.Files),
	})

	started := time.Now()
	out, err := stage.Run(ctx, batch)
	elapsed := time.Since(started)

	if err != nil {
		p.bus.Emit(EventStageError, Payload{
			"stage": stage.Name(),
			"error": err.Error(),
		})
		p.logger.Error().Err(err).Str("stage", stage.Name()).Msg("Stage failed")

		recovered, handleErr := stage.HandleError(err, batch)
		if handleErr != nil {
			return nil, handleErr
		}
		p.logger.Warn().Str("stage", stage.Name()).Msg("Stage recovered from failure")
		out = recovered
	}

	metric := p.metrics.record(stage.Name(), elapsed)
	p.bus.Emit(EventStageComplete, Payload{
		"stage":       stage.Name(),
		"files":       len(out.Files),
		"duration":    metric.Duration,
		"heapAlloc":   metric.HeapAlloc,
		"heapObjects": metric.HeapObjects,
	})

	if reporter, ok := stage.(BatchReporter); ok {
		p.bus.Emit(EventFileBatch, Payload{
			"stage":  stage.Name(),
			"count":  len(out.Files),
			"action": reporter.BatchAction(),
		})
	}

	return out, nil
}

// abort marks the run failed and drops queued limiter work. Tasks already
// running are left to finish.
func (p *Pipeline) abort(stage Stage, err error) {
	p.metrics.finish()
	p.setState(StateFailed)

	p.bus.Emit(EventPipelineError, Payload{
		"stage": stage.Name(),
		"error": err.Error(),
	})
	p.limits.Clear()
	p.logger.Error().Err(err).Str("stage", stage.Name()).Msg("Pipeline aborted")
}
