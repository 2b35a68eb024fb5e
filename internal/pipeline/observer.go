package pipeline

import (
	"context"
	"time"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"  // non-fatal; the run continued
	OutcomeAborted   Outcome = "aborted" // fatal; the run stopped here
	OutcomeSkipped   Outcome = "skipped" // a dependency did not succeed
)

// Observer is notified around every stage. BeforeStage may return a derived
// context (for example one carrying a span) that is passed to the stage.
type Observer interface {
	BeforeStage(ctx context.Context, stage string) context.Context
	AfterStage(ctx context.Context, stage string, outcome Outcome, err error, elapsed time.Duration)
}

type MultiObserver []Observer

func (m MultiObserver) BeforeStage(ctx context.Context, stage string) context.Context {
	for _, o := range m {
		if o != nil {
			ctx = o.BeforeStage(ctx, stage)
		}
	}
	return ctx
}

func (m MultiObserver) AfterStage(ctx context.Context, stage string, outcome Outcome, err error, elapsed time.Duration) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i] != nil {
			m[i].AfterStage(ctx, stage, outcome, err, elapsed)
		}
	}
}
