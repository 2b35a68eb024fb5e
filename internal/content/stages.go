package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/pipeline"
)

const (
	StageFetchSnippets      = "fetch_snippets"
	StageSynthesizeResearch = "synthesize_research"
	StageGenerateCopy       = "generate_copy"
	StageGenerateImage      = "generate_image"
	StageGenerateHashtags   = "generate_hashtags"
)

type Searcher interface {
	Search(ctx context.Context, topic string, keywords []string, link string) ([]domain.Snippet, error)
}

type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (domain.Image, error)
}

var ErrNoImagePrompt = errors.New("copy stage produced no image prompt")

type fetchSnippets struct {
	search Searcher
}

func (fetchSnippets) Name() string { return StageFetchSnippets }

func (s fetchSnippets) Run(ctx context.Context, st *State) (pipeline.Patch[State], error) {
	req := st.Request
	snippets, err := s.search.Search(ctx, req.Topic, req.Keywords, req.Link)
	if err != nil {
		return nil, fmt.Errorf("fetch snippets: %w", err)
	}
	if snippets == nil {
		snippets = []domain.Snippet{}
	}
	return Patch{
		Snippets: snippets,
		Metadata: map[string]any{"serp_snippet_count": len(snippets)},
	}, nil
}

type researchReply struct {
	Insights textList  `json:"insights"`
	Summary  textField `json:"summary"`
}

type synthesizeResearch struct {
	llm    Completer
	prompt string
}

func (synthesizeResearch) Name() string { return StageSynthesizeResearch }

func (s synthesizeResearch) Run(ctx context.Context, st *State) (pipeline.Patch[State], error) {
	text, err := s.llm.Complete(ctx, researchSystem, researchUserPrompt(s.prompt, st.Request, st.Snippets))
	if err != nil {
		return nil, fmt.Errorf("research completion: %w", err)
	}
	reply := ExtractJSON(text, researchReply{})
	research := domain.Research{
		Insights: append([]string{}, reply.Insights...),
		Summary:  string(reply.Summary),
	}
	return Patch{
		Research: &research,
		Metadata: map[string]any{"research_summary": research.Summary},
	}, nil
}

type copyReply struct {
	PostBody     textField `json:"post_body"`
	Headline     textField `json:"headline"`
	Rationale    textField `json:"rationale"`
	CallToAction textField `json:"call_to_action"`
	ImagePrompt  textField `json:"image_prompt"`
}

type generateCopy struct {
	llm    Completer
	prompt string
}

func (generateCopy) Name() string { return StageGenerateCopy }

func (s generateCopy) Run(ctx context.Context, st *State) (pipeline.Patch[State], error) {
	text, err := s.llm.Complete(ctx, copySystem, copyUserPrompt(s.prompt, st.Request, st.Research.Insights))
	if err != nil {
		return nil, fmt.Errorf("copy completion: %w", err)
	}
	reply := ExtractJSON(text, copyReply{})
	post := domain.Post{
		PostBody:     string(reply.PostBody),
		Headline:     string(reply.Headline),
		Rationale:    string(reply.Rationale),
		CallToAction: string(reply.CallToAction),
		ImagePrompt:  string(reply.ImagePrompt),
	}
	return Patch{Post: &post}, nil
}

type generateImage struct {
	images ImageGenerator
}

func (generateImage) Name() string { return StageGenerateImage }

func (s generateImage) Run(ctx context.Context, st *State) (pipeline.Patch[State], error) {
	if st.Post == nil || strings.TrimSpace(st.Post.ImagePrompt) == "" {
		return nil, ErrNoImagePrompt
	}
	img, err := s.images.Generate(ctx, st.Post.ImagePrompt)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return Patch{
		Image:    &img,
		Metadata: map[string]any{"image_reference": img.Reference},
	}, nil
}

type hashtagsReply struct {
	Hashtags  textList  `json:"hashtags"`
	Explainer textField `json:"explainer"`
}

type generateHashtags struct {
	llm    Completer
	prompt string
}

func (generateHashtags) Name() string { return StageGenerateHashtags }

func (s generateHashtags) Run(ctx context.Context, st *State) (pipeline.Patch[State], error) {
	body := ""
	if st.Post != nil {
		body = st.Post.PostBody
	}
	text, err := s.llm.Complete(ctx, hashtagsSystem, hashtagsUserPrompt(s.prompt, st.Request, body))
	if err != nil {
		return nil, fmt.Errorf("hashtag completion: %w", err)
	}
	reply := ExtractJSON(text, hashtagsReply{})
	pkg := domain.HashtagPackage{
		Hashtags:  cleanHashtags(reply.Hashtags),
		Explainer: string(reply.Explainer),
	}
	return Patch{Hashtags: &pkg}, nil
}

func cleanHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.Trim(t, "# "))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
