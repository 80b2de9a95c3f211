// Package pipeline runs ordered stages over a request value. Any stage may stop
// the run; stopping is a normal outcome, not an error.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
)

// Result is the tagged outcome of one stage: continue with a value, or stop.
type Result[T any] struct {
	value T
	cont  bool
}

// Continue passes v to the next stage.
func Continue[T any](v T) Result[T] {
	return Result[T]{value: v, cont: true}
}

// Stop halts the run silently.
func Stop[T any]() Result[T] {
	return Result[T]{}
}

// Continued reports whether the run should go on, and with which value.
func (r Result[T]) Continued() (T, bool) {
	return r.value, r.cont
}

// StageFunc processes one step. A returned error aborts the run.
type StageFunc[T any] func(ctx context.Context, in T) (Result[T], error)

// Stage is a named StageFunc.
type Stage[T any] struct {
	Name string
	Run  StageFunc[T]
}

// Status classifies how a run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusHalted    Status = "halted"
	StatusFailed    Status = "failed"
)

// Outcome describes a finished run.
type Outcome struct {
	Pipeline string
	RunID    string
	Status   Status
	Stage    string // stage that halted or failed; empty when completed
	Ran      int    // number of stages that executed
	Err      error
}

// Observer is notified after every run.
type Observer interface {
	ObserveRun(Outcome)
}

// Pipeline is an immutable, ordered list of stages.
type Pipeline[T any] struct {
	name     string
	stages   []Stage[T]
	observer Observer
}

// New creates a pipeline named name.
func New[T any](name string, stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{name: name, stages: append([]Stage[T](nil), stages...)}
}

// WithObserver returns a copy of p that reports outcomes to o.
func (p *Pipeline[T]) WithObserver(o Observer) *Pipeline[T] {
	cp := *p
	cp.observer = o
	return &cp
}

// Name returns the pipeline name.
func (p *Pipeline[T]) Name() string { return p.name }

// Stages returns the stage names in execution order.
func (p *Pipeline[T]) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes the stages in order until one stops, fails, or all complete.
func (p *Pipeline[T]) Run(ctx context.Context, in T) Outcome {
	out := Outcome{Pipeline: p.name, RunID: uuid.NewString(), Status: StatusCompleted}
	log := slog.With("pipeline", p.name, "run_id", out.RunID)
	log.Debug("Pipeline: received")

	cur := in
	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			out.Status, out.Stage, out.Err = StatusFailed, st.Name, err
			break
		}
		log.Debug("Pipeline: processing", "stage", st.Name)
		res, err := runStage(ctx, st, cur)
		out.Ran++
		if err != nil {
			out.Status, out.Stage, out.Err = StatusFailed, st.Name, err
			log.Warn("Pipeline: stage failed", "stage", st.Name, "error", err)
			break
		}
		next, ok := res.Continued()
		if !ok {
			out.Status, out.Stage = StatusHalted, st.Name
			break
		}
		cur = next
	}

	log.Debug("Pipeline: finished", "status", out.Status, "stage", out.Stage, "ran", out.Ran)
	if p.observer != nil {
		p.observer.ObserveRun(out)
	}
	return out
}

func runStage[T any](ctx context.Context, st Stage[T], in T) (res Result[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Pipeline: stage panicked", "stage", st.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("stage %s panicked: %v", st.Name, r)
		}
	}()
	return st.Run(ctx, in)
}
