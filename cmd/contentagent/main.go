package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/yungbote/contentagent/internal/app"
	"github.com/yungbote/contentagent/internal/config"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/shutdown"
)

// Global carries state shared by every subcommand.
type Global struct {
	Ctx context.Context
	Log *logger.Logger
	Cfg *config.Config
}

type CLI struct {
	Config  string           `short:"c" help:"YAML configuration file (overrides CONTENT_AGENT_CONFIG)" type:"path"`
	EnvFile string           `name:"env-file" help:"dotenv file loaded before configuration" default:".env"`
	LogMode string           `name:"log-mode" help:"development or production logging (overrides LOG_MODE)"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the payment-gated HTTP service"`
	Run    RunCmd    `cmd:"" help:"Run the content pipeline once for a topic, without payment, and print JSON"`
	Events EventsCmd `cmd:"" help:"Follow job lifecycle events from the configured redis or nats transport"`
}

func (c *CLI) load() (*config.Config, error) {
	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", c.EnvFile, err)
	}
	if c.Config != "" {
		if err := os.Setenv("CONTENT_AGENT_CONFIG", c.Config); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if mode := strings.TrimSpace(c.LogMode); mode != "" {
		cfg.Env = mode
	}
	return cfg, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("contentagent"),
		kong.Description("Payment-gated social media content agent."),
		kong.Vars{"version": app.Version},
		kong.UsageOnError(),
	)

	cfg, err := cli.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	err = kctx.Run(&Global{Ctx: ctx, Log: log, Cfg: cfg}, &cli)
	stop()
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", kctx.Command(), err)
		os.Exit(1)
	}
}
