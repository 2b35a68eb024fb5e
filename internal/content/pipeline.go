package content

import (
	"context"
	"errors"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/pipeline"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type Deps struct {
	Search  Searcher
	LLM     Completer
	Images  ImageGenerator // nil drops the image stage
	Prompts Prompts
}

// NewPipeline wires research -> copy -> image -> hashtags. Only image
// generation is non-fatal: text delivery never waits on it.
func NewPipeline(deps Deps) (*pipeline.Executor[State], error) {
	if deps.Search == nil {
		return nil, errors.New("content pipeline: search provider required")
	}
	if deps.LLM == nil {
		return nil, errors.New("content pipeline: llm required")
	}
	prompts := deps.Prompts.WithDefaults()

	specs := []pipeline.Spec[State]{
		{
			Stage:   fetchSnippets{search: deps.Search},
			Fatal:   true,
			Outputs: []string{KeySnippets},
		},
		{
			Stage:   synthesizeResearch{llm: deps.LLM, prompt: prompts.Research},
			Fatal:   true,
			Outputs: []string{KeyResearch},
			Deps:    []string{StageFetchSnippets},
		},
		{
			Stage:   generateCopy{llm: deps.LLM, prompt: prompts.Copywriter},
			Fatal:   true,
			Outputs: []string{KeyPost},
			Deps:    []string{StageSynthesizeResearch},
		},
	}
	if deps.Images != nil {
		specs = append(specs, pipeline.Spec[State]{
			Stage:   generateImage{images: deps.Images},
			Fatal:   false,
			Outputs: []string{KeyImage},
			Deps:    []string{StageGenerateCopy},
		})
	}
	specs = append(specs, pipeline.Spec[State]{
		Stage:   generateHashtags{llm: deps.LLM, prompt: prompts.Hashtags},
		Fatal:   true,
		Outputs: []string{KeyHashtags},
		Deps:    []string{StageGenerateCopy},
	})

	ex, err := pipeline.New(specs...)
	if err != nil {
		return nil, err
	}
	ex.OnStageError = recordStageError
	return ex, nil
}

// Runner executes the content pipeline for one request.
type Runner struct {
	exec *pipeline.Executor[State]
	log  *logger.Logger
}

func NewRunner(exec *pipeline.Executor[State], obs pipeline.Observer, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	exec.Log = log.With("component", "ContentPipeline")
	if obs != nil {
		exec.Observer = obs
	}
	return &Runner{exec: exec, log: log}
}

func (r *Runner) Run(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
	st, err := r.exec.Run(ctx, NewState(req))
	if err != nil {
		return domain.ContentResult{}, err
	}
	res := Result(st)
	if len(res.Errors) > 0 {
		r.log.Warn("content pipeline finished with stage errors", "errors", res.Errors)
	}
	return res, nil
}
