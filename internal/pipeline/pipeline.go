// Package pipeline runs an ordered graph of stages over a state value owned
// by a single run. Each stage is classified fatal or non-fatal when the
// pipeline is built: a fatal failure aborts the run, a non-fatal one is
// recorded on the state and execution moves on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/yungbote/contentagent/internal/platform/logger"
)

// MetadataKey is the shared diagnostics side channel. Every stage may write
// it; the state merges it rather than replacing it.
const MetadataKey = "metadata"

// Patch is the typed output of one stage.
type Patch[S any] interface {
	// Keys lists the state fields the patch sets.
	Keys() []string
	Apply(state *S)
}

type Stage[S any] interface {
	Name() string
	Run(ctx context.Context, state *S) (Patch[S], error)
}

// Spec places a stage in a pipeline.
type Spec[S any] struct {
	Stage   Stage[S]
	Fatal   bool
	Outputs []string
	Deps    []string
}

type StageError struct {
	Stage string
	Fatal bool
	Err   error
}

func (e *StageError) Error() string {
	kind := "non-fatal"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("stage %s (%s): %v", e.Stage, kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

var (
	ErrUndeclaredOutput = errors.New("stage wrote an undeclared output")
	ErrDependencyFailed = errors.New("dependency did not succeed")
)

type Executor[S any] struct {
	Log      *logger.Logger
	Observer Observer

	// OnStageError receives every non-fatal failure so the state can keep
	// it in its error list and metadata.
	OnStageError func(state *S, err *StageError)

	specs []Spec[S]
}

func New[S any](specs ...Spec[S]) (*Executor[S], error) {
	names := make([]string, 0, len(specs))
	deps := make(map[string][]string, len(specs))
	for i, s := range specs {
		if s.Stage == nil {
			return nil, fmt.Errorf("stage %d is nil", i)
		}
		name := s.Stage.Name()
		names = append(names, name)
		deps[name] = s.Deps
	}
	if err := validateDAG(names, deps); err != nil {
		return nil, err
	}
	return &Executor[S]{specs: append([]Spec[S](nil), specs...)}, nil
}

func (e *Executor[S]) Stages() []string {
	out := make([]string, 0, len(e.specs))
	for _, s := range e.specs {
		out = append(out, s.Stage.Name())
	}
	return out
}

// Run executes every stage in order against state. It returns the state in
// its final form; on a fatal failure the returned error is a *StageError.
func (e *Executor[S]) Run(ctx context.Context, state *S) (*S, error) {
	if state == nil {
		return nil, errors.New("pipeline: nil state")
	}
	log := e.Log
	if log == nil {
		log = logger.Nop()
	}
	obs := e.Observer
	if obs == nil {
		obs = MultiObserver(nil)
	}

	succeeded := make(map[string]bool, len(e.specs))
	for _, spec := range e.specs {
		name := spec.Stage.Name()
		stageCtx := obs.BeforeStage(ctx, name)
		start := time.Now()

		var err error
		if missing := firstUnmet(spec.Deps, succeeded); missing != "" {
			err = fmt.Errorf("%w: %s", ErrDependencyFailed, missing)
		} else {
			var patch Patch[S]
			patch, err = runStage(stageCtx, spec.Stage, state)
			if err == nil && patch != nil {
				if err = checkOutputs(patch.Keys(), spec.Outputs); err == nil {
					patch.Apply(state)
				}
			}
		}
		elapsed := time.Since(start)

		if err == nil {
			succeeded[name] = true
			obs.AfterStage(stageCtx, name, OutcomeSucceeded, nil, elapsed)
			log.Debug("stage succeeded", "stage", name, "duration_ms", elapsed.Milliseconds())
			continue
		}

		serr := &StageError{Stage: name, Fatal: spec.Fatal, Err: err}
		if spec.Fatal {
			obs.AfterStage(stageCtx, name, OutcomeAborted, serr, elapsed)
			log.Warn("stage failed, aborting pipeline", "stage", name, "error", err)
			return state, serr
		}
		outcome := OutcomeFailed
		if errors.Is(err, ErrDependencyFailed) {
			outcome = OutcomeSkipped
		}
		obs.AfterStage(stageCtx, name, outcome, serr, elapsed)
		log.Warn("stage failed, continuing", "stage", name, "error", err)
		if e.OnStageError != nil {
			e.OnStageError(state, serr)
		}
	}
	return state, nil
}

func runStage[S any](ctx context.Context, st Stage[S], state *S) (patch Patch[S], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return st.Run(ctx, state)
}

func checkOutputs(keys []string, declared []string) error {
	for _, k := range keys {
		if k == MetadataKey {
			continue
		}
		ok := false
		for _, d := range declared {
			if d == k {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUndeclaredOutput, k)
		}
	}
	return nil
}

func firstUnmet(deps []string, succeeded map[string]bool) string {
	for _, d := range deps {
		if !succeeded[d] {
			return d
		}
	}
	return ""
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
