package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yungbote/contentagent/internal/app"
	"github.com/yungbote/contentagent/internal/content"
	"github.com/yungbote/contentagent/internal/domain"
)

type RunCmd struct {
	Topic    string        `arg:"" help:"What the post is about"`
	Tone     string        `default:"pragmatic" help:"Voice of the post"`
	Platform string        `default:"linkedin" enum:"linkedin,twitter" help:"Target platform"`
	Keywords []string      `short:"k" sep:"," help:"Comma separated keywords"`
	Link     string        `help:"Site to focus research on"`
	Audience string        `help:"Audience description"`
	NoEmojis bool          `name:"no-emojis" help:"Disallow emojis in the post"`
	Timeout  time.Duration `default:"10m" help:"Give up on the run after this long"`

	out io.Writer `kong:"-"`
}

func (r *RunCmd) Run(g *Global) error {
	if err := g.Cfg.ValidatePipeline(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	clients, err := app.WireContentClients(g.Log, g.Cfg, nil)
	if err != nil {
		return err
	}
	runner, err := app.NewContentRunner(g.Log, g.Cfg, clients, nil)
	if err != nil {
		return err
	}
	return r.execute(g.Ctx, runner)
}

func (r *RunCmd) request() domain.ContentRequest {
	return domain.ContentRequest{
		Topic:     r.Topic,
		Tone:      r.Tone,
		Platform:  r.Platform,
		Keywords:  domain.SplitKeywords(r.Keywords),
		Link:      r.Link,
		Audience:  r.Audience,
		UseEmojis: !r.NoEmojis,
	}.Normalized()
}

func (r *RunCmd) execute(ctx context.Context, runner *content.Runner) error {
	req := r.request()
	if err := req.Validate(); err != nil {
		return err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	res, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	out := r.out
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
