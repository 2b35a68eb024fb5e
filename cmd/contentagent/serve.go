package main

import (
	"github.com/yungbote/contentagent/internal/app"
)

type ServeCmd struct {
	Addr string `help:"Listen address (overrides HTTP_ADDR)"`
}

func (s *ServeCmd) Run(g *Global) error {
	if s.Addr != "" {
		g.Cfg.HTTP.Addr = s.Addr
	}
	a, err := app.New(g.Ctx, g.Log, g.Cfg)
	if err != nil {
		return err
	}
	return a.Run(g.Ctx)
}
