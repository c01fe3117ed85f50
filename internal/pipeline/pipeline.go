// Package pipeline runs a question through retrieval and then generation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/metrics"
)

// State is the position of a run in the pipeline.
type State string

const (
	StateStart    State = "start"
	StateRetrieve State = "retrieve"
	StateGenerate State = "generate"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// Retriever produces the context blob for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Generator produces an answer from a query and its context.
type Generator interface {
	Generate(ctx context.Context, query, context string) (string, error)
}

// StageError reports the stage at which a run failed.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result is the record of one run.
type Result struct {
	RunID            string        `json:"run_id"`
	Query            string        `json:"query"`
	Context          string        `json:"context"`
	Answer           string        `json:"answer,omitempty"`
	State            State         `json:"state"`
	FailedStage      State         `json:"failed_stage,omitempty"`
	Error            string        `json:"error,omitempty"`
	RetrieveDuration time.Duration `json:"retrieve_duration"`
	GenerateDuration time.Duration `json:"generate_duration"`
}

// Pipeline sequences retrieval and generation. Generation only starts after
// retrieval has returned, and receives the retrieval output as its context.
type Pipeline struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline.
func New(retriever Retriever, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{retriever: retriever, generator: generator, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers query. On failure the returned Result has State StateFailed, no
// answer, and the error is a *StageError naming the failed stage.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Query: query, State: StateStart}
	log := p.logger.With(zap.String("run_id", res.RunID))
	log.Info("pipeline started", zap.String("query", query))

	p.transition(log, res, StateRetrieve)
	start := time.Now()
	retrieved, err := p.retriever.Retrieve(ctx, query)
	res.RetrieveDuration = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(StateRetrieve)).Observe(res.RetrieveDuration.Seconds())
	if err != nil {
		return res, p.fail(log, res, StateRetrieve, err)
	}
	res.Context = retrieved

	p.transition(log, res, StateGenerate)
	start = time.Now()
	answer, err := p.generator.Generate(ctx, query, retrieved)
	res.GenerateDuration = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(StateGenerate)).Observe(res.GenerateDuration.Seconds())
	if err != nil {
		return res, p.fail(log, res, StateGenerate, err)
	}
	res.Answer = answer

	p.transition(log, res, StateDone)
	metrics.PipelineRunsTotal.WithLabelValues(string(StateDone)).Inc()
	return res, nil
}

func (p *Pipeline) transition(log *zap.Logger, res *Result, to State) {
	log.Debug("pipeline transition", zap.String("from", string(res.State)), zap.String("stage", string(to)))
	res.State = to
}

func (p *Pipeline) fail(log *zap.Logger, res *Result, stage State, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	res.State = StateFailed
	res.FailedStage = stage
	res.Error = err.Error()
	metrics.PipelineRunsTotal.WithLabelValues(string(StateFailed)).Inc()
	log.Error("pipeline failed", zap.String("stage", string(stage)), zap.Error(err))
	return stageErr
}
