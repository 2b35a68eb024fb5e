package main

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/yungbote/contentagent/internal/app"
	"github.com/yungbote/contentagent/internal/domain"
)

type EventsCmd struct {
	JobID string `name:"job" help:"Only print events for this job"`

	out io.Writer `kong:"-"`
}

func (e *EventsCmd) Run(g *Global) error {
	bus, err := app.OpenEventBus(g.Log, g.Cfg.Events)
	if err != nil {
		return err
	}
	defer bus.Close()

	var mu sync.Mutex
	enc := json.NewEncoder(e.writer())
	if err := bus.StartForwarder(g.Ctx, func(ev domain.JobEvent) {
		if !e.matches(ev) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(ev); err != nil {
			g.Log.Warn("write event", "error", err)
		}
	}); err != nil {
		return err
	}
	g.Log.Info("following job events", "backend", g.Cfg.Events.Backend, "job_id", e.JobID)
	<-g.Ctx.Done()
	return nil
}

func (e *EventsCmd) matches(ev domain.JobEvent) bool {
	return e.JobID == "" || ev.JobID == e.JobID
}

func (e *EventsCmd) writer() io.Writer {
	if e.out != nil {
		return e.out
	}
	return os.Stdout
}
