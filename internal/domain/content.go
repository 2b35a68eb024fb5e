package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ContentRequest is the caller-supplied brief. It is immutable once a job
// has been created from it.
type ContentRequest struct {
	Topic     string   `json:"topic"`
	Tone      string   `json:"tone"`
	Platform  string   `json:"platform"`
	Keywords  []string `json:"keywords,omitempty"`
	Link      string   `json:"link,omitempty"`
	Audience  string   `json:"audience,omitempty"`
	UseEmojis bool     `json:"use_emojis"`
}

var ErrInvalidRequest = errors.New("invalid content request")

func (r ContentRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Topic) == "" {
		missing = append(missing, "topic")
	}
	if strings.TrimSpace(r.Tone) == "" {
		missing = append(missing, "tone")
	}
	if strings.TrimSpace(r.Platform) == "" {
		missing = append(missing, "platform")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Normalized trims every field and drops empty keywords.
func (r ContentRequest) Normalized() ContentRequest {
	out := ContentRequest{
		Topic:     strings.TrimSpace(r.Topic),
		Tone:      strings.TrimSpace(r.Tone),
		Platform:  strings.ToLower(strings.TrimSpace(r.Platform)),
		Link:      strings.TrimSpace(r.Link),
		Audience:  strings.TrimSpace(r.Audience),
		UseEmojis: r.UseEmojis,
	}
	for _, k := range r.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			out.Keywords = append(out.Keywords, k)
		}
	}
	return out
}

// SplitKeywords accepts "a, b" style input as well as a list.
func SplitKeywords(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(t)}
	}
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

type Snippet struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Excerpt string `json:"snippet"`
	Source  string `json:"source"`
}

type Research struct {
	Insights []string `json:"insights"`
	Summary  string   `json:"summary"`
}

type Post struct {
	PostBody     string `json:"post_body"`
	Headline     string `json:"headline"`
	Rationale    string `json:"rationale"`
	CallToAction string `json:"call_to_action"`
	ImagePrompt  string `json:"image_prompt"`
}

type Image struct {
	Reference string `json:"reference"`
	ImageURL  string `json:"image_url"`
}

type HashtagPackage struct {
	Hashtags  []string `json:"hashtags"`
	Explainer string   `json:"explainer"`
}

// ContentResult is the structured output stored on a completed job.
type ContentResult struct {
	Topic            string         `json:"topic"`
	Tone             string         `json:"tone"`
	Platform         string         `json:"platform"`
	Post             Post           `json:"post"`
	Hashtags         []string       `json:"hashtags"`
	HashtagExplainer string         `json:"hashtag_explainer,omitempty"`
	Insights         []string       `json:"insights"`
	ResearchSummary  string         `json:"research_summary"`
	Snippets         []Snippet      `json:"snippets"`
	Image            *Image         `json:"image"`
	Errors           []string       `json:"errors,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}
