package content

import (
	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/pipeline"
)

// Output keys a stage may declare.
const (
	KeySnippets = "snippets"
	KeyResearch = "research"
	KeyPost     = "post"
	KeyImage    = "image"
	KeyHashtags = "hashtags"
)

// State is threaded through one pipeline run and discarded afterwards.
type State struct {
	Request  domain.ContentRequest
	Snippets []domain.Snippet
	Research domain.Research
	Post     *domain.Post
	Image    *domain.Image
	Hashtags *domain.HashtagPackage
	Metadata map[string]any
	Errors   []string
}

func NewState(req domain.ContentRequest) *State {
	return &State{Request: req, Metadata: map[string]any{}}
}

// Patch carries one stage's output. Nil fields are left untouched.
type Patch struct {
	Snippets []domain.Snippet
	Research *domain.Research
	Post     *domain.Post
	Image    *domain.Image
	Hashtags *domain.HashtagPackage
	Metadata map[string]any
}

func (p Patch) Keys() []string {
	var keys []string
	if p.Snippets != nil {
		keys = append(keys, KeySnippets)
	}
	if p.Research != nil {
		keys = append(keys, KeyResearch)
	}
	if p.Post != nil {
		keys = append(keys, KeyPost)
	}
	if p.Image != nil {
		keys = append(keys, KeyImage)
	}
	if p.Hashtags != nil {
		keys = append(keys, KeyHashtags)
	}
	if p.Metadata != nil {
		keys = append(keys, pipeline.MetadataKey)
	}
	return keys
}

func (p Patch) Apply(st *State) {
	if p.Snippets != nil {
		st.Snippets = p.Snippets
	}
	if p.Research != nil {
		st.Research = *p.Research
	}
	if p.Post != nil {
		post := *p.Post
		st.Post = &post
	}
	if p.Image != nil {
		img := *p.Image
		st.Image = &img
	}
	if p.Hashtags != nil {
		pkg := *p.Hashtags
		st.Hashtags = &pkg
	}
	if p.Metadata != nil {
		st.Metadata = pipeline.DeepMerge(st.Metadata, p.Metadata)
	}
}

func recordStageError(st *State, err *pipeline.StageError) {
	st.Errors = append(st.Errors, err.Error())
	st.Metadata = pipeline.DeepMerge(st.Metadata, map[string]any{
		err.Stage + "_error": err.Err.Error(),
	})
}

// Result extracts the deliverable from a finished run.
func Result(st *State) domain.ContentResult {
	out := domain.ContentResult{
		Topic:           st.Request.Topic,
		Tone:            st.Request.Tone,
		Platform:        st.Request.Platform,
		Insights:        append([]string{}, st.Research.Insights...),
		ResearchSummary: st.Research.Summary,
		Snippets:        append([]domain.Snippet{}, st.Snippets...),
		Hashtags:        []string{},
		Errors:          append([]string(nil), st.Errors...),
		Metadata:        pipeline.DeepMerge(nil, st.Metadata),
	}
	if st.Post != nil {
		out.Post = *st.Post
	}
	if st.Hashtags != nil {
		out.Hashtags = append(out.Hashtags, st.Hashtags.Hashtags...)
		out.HashtagExplainer = st.Hashtags.Explainer
	}
	if st.Image != nil {
		img := *st.Image
		out.Image = &img
	}
	return out
}
