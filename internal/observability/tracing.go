package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/contentagent/internal/pipeline"
	"github.com/yungbote/contentagent/internal/platform/ctxutil"
)

const tracerName = "github.com/yungbote/contentagent/internal/pipeline"

// StageTracer opens one span per pipeline stage.
type StageTracer struct {
	tracer trace.Tracer
}

func NewStageTracer() *StageTracer {
	return &StageTracer{tracer: otel.Tracer(tracerName)}
}

func (t *StageTracer) BeforeStage(ctx context.Context, stage string) context.Context {
	attrs := []attribute.KeyValue{attribute.String("pipeline.stage", stage)}
	if id := ctxutil.JobID(ctx); id != "" {
		attrs = append(attrs, attribute.String("job.id", id))
	}
	ctx, _ = t.tracer.Start(ctx, "stage."+stage, trace.WithAttributes(attrs...))
	return ctx
}

func (t *StageTracer) AfterStage(ctx context.Context, stage string, outcome pipeline.Outcome, err error, elapsed time.Duration) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("pipeline.outcome", string(outcome)),
		attribute.Int64("pipeline.elapsed_ms", elapsed.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
