// TEST TYPE: Unit Test
// DEPENDENCIES: None (fake stages)
// PURPOSE: Test stage ordering, the event sequence, error recovery vs
// abort, listener management, and payload isolation

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/limiter"
	"github.com/gregpriday/copytree/pkg/pipeline"
	"github.com/gregpriday/copytree/pkg/types"
)

// fakeStage appends its name to every file path so ordering is observable
type fakeStage struct {
	name    string
	action  string
	runErr  error
	recover bool
	ran     int
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) BatchAction() string { return s.action }

func (s *fakeStage) Run(_ context.Context, batch *types.Batch) (*types.Batch, error) {
	s.ran++
	if s.runErr != nil {
		return nil, s.runErr
	}

	out := batch.Clone()
	for i, f := range out.Files {
		rec := f.Clone()
		rec.Path = rec.Path + ">" + s.name
		out.Files[i] = rec
	}
	return out, nil
}

func (s *fakeStage) HandleError(err error, batch *types.Batch) (*types.Batch, error) {
	if !s.recover {
		return nil, err
	}
	out := batch.Clone()
	out.RecoveredFromError = true
	return out, nil
}

func inputBatch() *types.Batch {
	return &types.Batch{
		Root:  "/src",
		Files: []*types.FileRecord{{Path: "main.go"}},
	}
}

func TestProcess_RunsStagesInOrder(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		&fakeStage{name: "one", action: "discovered"},
		&fakeStage{name: "two", action: "filtered"},
	}, limiter.NewManager())

	out, err := p.Process(context.Background(), inputBatch())
	require.NoError(t, err)

	assert.Equal(t, "main.go>one>two", out.Files[0].Path)
	assert.Equal(t, pipeline.StateCompleted, p.State())
}

func TestProcess_EventSequence(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		&fakeStage{name: "one", action: "discovered"},
	}, limiter.NewManager())

	var seen []string
	for _, ev := range []string{
		pipeline.EventPipelineStart,
		pipeline.EventStageStart,
		pipeline.EventStageComplete,
		pipeline.EventFileBatch,
		pipeline.EventPipelineComplete,
	} {
		ev := ev
		p.Events().On(ev, func(pipeline.Payload) {
			seen = append(seen, ev)
		})
	}

	_, err := p.Process(context.Background(), inputBatch())
	require.NoError(t, err)

	assert.Equal(t, []string{
		pipeline.EventPipelineStart,
		pipeline.EventStageStart,
		pipeline.EventStageComplete,
		pipeline.EventFileBatch,
		pipeline.EventPipelineComplete,
	}, seen)
}

func TestProcess_FileBatchPayload(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		&fakeStage{name: "one", action: "discovered"},
	}, limiter.NewManager())

	var got pipeline.Payload
	p.Events().On(pipeline.EventFileBatch, func(pl pipeline.Payload) {
		got = pl
	})

	_, err := p.Process(context.Background(), inputBatch())
	require.NoError(t, err)

	assert.Equal(t, "one", got["stage"])
	assert.Equal(t, 1, got["count"])
	assert.Equal(t, "discovered", got["action"])
}

func TestProcess_RecoveredStageContinues(t *testing.T) {
	flaky := &fakeStage{
		name:    "flaky",
		runErr:  errors.New(errors.ErrStageFailed, "boom"),
		recover: true,
	}
	after := &fakeStage{name: "after"}
	p := pipeline.New([]pipeline.Stage{flaky, after}, limiter.NewManager())

	var stageErrors, pipelineErrors int
	p.Events().On(pipeline.EventStageError, func(pipeline.Payload) { stageErrors++ })
	p.Events().On(pipeline.EventPipelineError, func(pipeline.Payload) { pipelineErrors++ })

	out, err := p.Process(context.Background(), inputBatch())
	require.NoError(t, err)

	assert.True(t, out.RecoveredFromError)
	assert.Equal(t, 1, after.ran, "stage after the recovered one should still run")
	assert.Equal(t, 1, stageErrors)
	assert.Zero(t, pipelineErrors)
	assert.Equal(t, pipeline.StateCompleted, p.State())
}

func TestProcess_UnrecoveredStageAborts(t *testing.T) {
	flaky := &fakeStage{
		name:   "flaky",
		runErr: errors.New(errors.ErrStageFailed, "boom"),
	}
	after := &fakeStage{name: "after"}
	p := pipeline.New([]pipeline.Stage{flaky, after}, limiter.NewManager())

	var pipelineErrors []pipeline.Payload
	p.Events().On(pipeline.EventPipelineError, func(pl pipeline.Payload) {
		pipelineErrors = append(pipelineErrors, pl)
	})

	_, err := p.Process(context.Background(), inputBatch())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineAborted))
	assert.Contains(t, err.Error(), "flaky")

	assert.Zero(t, after.ran)
	assert.Equal(t, pipeline.StateFailed, p.State())

	require.Len(t, pipelineErrors, 1)
	assert.Equal(t, "flaky", pipelineErrors[0]["stage"])
}

func TestProcess_AbortClearsQueuedLimiterWork(t *testing.T) {
	m := limiter.NewManager()
	require.NoError(t, m.SetBudget("io", 1))

	// Occupy the only slot so a follow-up task queues
	release := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), "io", func() error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	queuedErr := make(chan error, 1)
	go func() {
		queuedErr <- m.Do(context.Background(), "io", func() error { return nil })
	}()

	// Wait for the second task to actually queue
	require.Eventually(t, func() bool {
		return m.Stats("io").Pending == 1
	}, time.Second, time.Millisecond)

	p := pipeline.New([]pipeline.Stage{
		&fakeStage{name: "flaky", runErr: errors.New(errors.ErrStageFailed, "boom")},
	}, m)

	_, err := p.Process(context.Background(), inputBatch())
	require.Error(t, err)

	select {
	case qErr := <-queuedErr:
		assert.True(t, errors.IsErrorCode(qErr, errors.ErrLimiterCleared))
	case <-time.After(time.Second):
		t.Fatal("queued task was not cleared by the aborting pipeline")
	}

	close(release)
}

func TestEventBus_OnceAndOff(t *testing.T) {
	bus := pipeline.NewEventBus()

	var onCount, onceCount int
	id := bus.On("tick", func(pipeline.Payload) { onCount++ })
	bus.Once("tick", func(pipeline.Payload) { onceCount++ })

	bus.Emit("tick", nil)
	bus.Emit("tick", nil)
	assert.Equal(t, 2, onCount)
	assert.Equal(t, 1, onceCount)

	bus.Off("tick", id)
	bus.Emit("tick", nil)
	assert.Equal(t, 2, onCount)
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := pipeline.NewEventBus()

	var a, b int
	bus.On("tick", func(pipeline.Payload) { a++ })
	bus.On("tick", func(pipeline.Payload) { b++ })

	bus.Emit("tick", pipeline.Payload{"n": 1})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestEventBus_PayloadIsolation(t *testing.T) {
	bus := pipeline.NewEventBus()

	var second pipeline.Payload
	bus.On("tick", func(pl pipeline.Payload) {
		// A listener mutating its payload must not leak to other listeners
		pl["n"] = 99
	})
	bus.On("tick", func(pl pipeline.Payload) {
		second = pl
	})

	source := pipeline.Payload{"n": 1}
	bus.Emit("tick", source)

	assert.Equal(t, 1, second["n"])
	assert.Equal(t, 1, source["n"])
}

func TestMetrics_AppendOnlyAcrossRuns(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		&fakeStage{name: "one"},
	}, limiter.NewManager())

	_, err := p.Process(context.Background(), inputBatch())
	require.NoError(t, err)
	_, err = p.Process(context.Background(), inputBatch())
	require.NoError(t, err)

	stages := p.Metrics().Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, "one", stages[0].Stage)
	assert.Equal(t, "one", stages[1].Stage)

	timings := p.Metrics().StageTimings()
	assert.Contains(t, timings, "one")
}
