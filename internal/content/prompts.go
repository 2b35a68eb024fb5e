package content

import (
	"fmt"
	"strings"

	"github.com/yungbote/contentagent/internal/domain"
)

// Prompts holds the instruction templates for the three LLM stages.
// Placeholders use {name} syntax.
type Prompts struct {
	Research   string `yaml:"research"`
	Copywriter string `yaml:"copywriter"`
	Hashtags   string `yaml:"hashtags"`
}

const defaultResearchPrompt = `You are a research analyst. Given a topic, tone, and optional keywords, write up
to {num_results} short bullet insights (at most 300 characters each) drawn from the
snippets below: key statistics, quotes, or contrarian takes. Prefer a mix of sources
such as news, analyst notes, founders and regulators. Return JSON with the keys
"insights" (list of strings) and "summary" (at most 120 characters).`

const defaultCopywriterPrompt = `You write platform-specific social media posts for technology professionals,
automation enthusiasts and businesses.

Platform guidelines:
- LinkedIn: professional and insightful, 3-4 sentences, business use cases and
  industry insight, close with an invitation to comment.
- Twitter (X): concise and punchy, at most 150 characters, invite replies or reposts.

Brief:
- Topic: {topic}
- Keywords: {keywords}
- Tone: {tone}
- Platform: {platform}

Respond with pure JSON only, using these keys:
- "post_body": the main post text for the platform.
- "headline": an optional hook usable as a first line.
- "rationale": a short explanation of the chosen angle.
- "call_to_action": an explicit CTA, or an empty string.
- "image_prompt": one or two sentences (under 60 words) describing an illustrative
  image for the post. No model names, hashtags, URLs or long embedded text.`

const defaultHashtagsPrompt = `Given the topic, tone ({tone}), platform ({platform}) and the final post, propose
high-signal hashtags. Mix broad, mid and long-tail tags and optimise for engagement.
Return JSON with:
- "hashtags": an ordered list of 5-8 tags without the # prefix.
- "explainer": one sentence on why these tags reach the audience.`

func DefaultPrompts() Prompts {
	return Prompts{
		Research:   defaultResearchPrompt,
		Copywriter: defaultCopywriterPrompt,
		Hashtags:   defaultHashtagsPrompt,
	}
}

// WithDefaults fills empty templates from DefaultPrompts.
func (p Prompts) WithDefaults() Prompts {
	d := DefaultPrompts()
	if strings.TrimSpace(p.Research) == "" {
		p.Research = d.Research
	}
	if strings.TrimSpace(p.Copywriter) == "" {
		p.Copywriter = d.Copywriter
	}
	if strings.TrimSpace(p.Hashtags) == "" {
		p.Hashtags = d.Hashtags
	}
	return p
}

const snippetExcerptLimit = 400

func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const researchSystem = "You convert search snippets into JSON with 'insights' and 'summary'."

func researchUserPrompt(tmpl string, req domain.ContentRequest, snippets []domain.Snippet) string {
	prompt := render(tmpl, map[string]string{
		"topic":       req.Topic,
		"tone":        req.Tone,
		"num_results": fmt.Sprint(len(snippets)),
	})
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nSnippets:\n")
	for _, s := range snippets {
		fmt.Fprintf(&b, "- %s (%s): %s\n",
			orDefault(s.Title, "Untitled"),
			orDefault(s.Source, "unknown"),
			truncate(s.Excerpt, snippetExcerptLimit),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

const copySystem = "You return pure JSON for social copy requests with the keys: " +
	"post_body, headline, rationale, call_to_action, image_prompt."

func copyUserPrompt(tmpl string, req domain.ContentRequest, insights []string) string {
	keywords := orDefault(strings.Join(req.Keywords, ", "), "None")
	platform := orDefault(req.Platform, "linkedin")
	prompt := render(tmpl, map[string]string{
		"topic":    req.Topic,
		"tone":     req.Tone,
		"platform": platform,
		"keywords": keywords,
	})
	insightBlock := "No insights provided."
	if len(insights) > 0 {
		lines := make([]string, 0, len(insights))
		for _, in := range insights {
			lines = append(lines, "- "+in)
		}
		insightBlock = strings.Join(lines, "\n")
	}
	emoji := "IMPORTANT: Do NOT use emojis in the content."
	if req.UseEmojis {
		emoji = "IMPORTANT: Use emojis in the content."
	}
	return fmt.Sprintf("%s\n\nTopic: %s\nTone: %s\nPlatform: %s\nKeywords: %s\nLink: %s\nAudience: %s\nInsights:\n%s\n%s",
		prompt, req.Topic, req.Tone, platform, keywords,
		orDefault(req.Link, "None"),
		orDefault(req.Audience, "General"),
		insightBlock, emoji,
	)
}

const hashtagsSystem = "Always respond with JSON containing hashtags + explainer."

func hashtagsUserPrompt(tmpl string, req domain.ContentRequest, postBody string) string {
	prompt := render(tmpl, map[string]string{
		"platform": orDefault(req.Platform, "linkedin"),
		"tone":     req.Tone,
		"topic":    req.Topic,
	})
	return fmt.Sprintf("%s\n\nPost:\n%s\nTopic: %s\nTone: %s\nAudience: %s",
		prompt, postBody, req.Topic, req.Tone, orDefault(req.Audience, "General"))
}
