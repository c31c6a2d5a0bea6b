package main

import (
	"fmt"
	"io"
	stdhttp "net/http"
	"os"

	"github.com/ceskypane/statuscard/config"
	"github.com/ceskypane/statuscard/events"
	"github.com/ceskypane/statuscard/github"
	"github.com/ceskypane/statuscard/lanyard"
	"github.com/ceskypane/statuscard/logging"
	transporthttp "github.com/ceskypane/statuscard/transport/http"
	"github.com/ceskypane/statuscard/widget"
	"github.com/rs/zerolog"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	verbose    bool

	cfg  config.Config
	log  logging.Logger
	sync func()
	bus  *events.Bus
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.verbose {
		cfg.Log.Level = "debug"
	}

	log, sync, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.sync = sync
	a.bus = events.NewBus()

	return nil
}

func (a *app) close() {
	if a.bus != nil {
		a.bus.Close()
	}

	if a.sync != nil {
		a.sync()
	}
}

func buildLogger(cfg config.LogConfig) (logging.Logger, func(), error) {
	switch cfg.Backend {
	case config.BackendZerolog:
		out := io.Writer(zerolog.ConsoleWriter{Out: os.Stderr})
		if cfg.Format == config.FormatJSON {
			out = os.Stderr
		}

		zl, err := logging.BuildZerolog(cfg.Level, out)
		if err != nil {
			return nil, nil, fmt.Errorf("build zerolog logger: %w", err)
		}

		return logging.NewZerolog(zl), func() {}, nil
	default:
		zl, err := logging.BuildZap(cfg.Level, cfg.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}

		return logging.NewZap(zl), func() { _ = zl.Sync() }, nil
	}
}

func (a *app) transport(token string) *transporthttp.Client {
	var tokens transporthttp.TokenProvider
	if token != "" {
		tokens = transporthttp.StaticToken(token)
	}

	return transporthttp.NewClient(&stdhttp.Client{Timeout: a.cfg.HTTP.Timeout}, tokens, transporthttp.Config{
		MaxRetries: a.cfg.HTTP.MaxRetries,
		UserAgent:  a.cfg.HTTP.UserAgent,
	})
}

func (a *app) lanyardClient() *lanyard.Client {
	return lanyard.NewClient(a.transport(""), lanyard.Config{
		BaseURL: a.cfg.Discord.LanyardBaseURL,
		Logger:  a.log,
	})
}

func (a *app) githubClient() *github.Client {
	return github.NewClient(a.transport(a.cfg.GitHub.Token), github.Config{
		BaseURL: a.cfg.GitHub.BaseURL,
		Logger:  a.log,
	})
}

// channelFactory builds one lanyard push channel per presence widget.
func (a *app) channelFactory() widget.ChannelFactory {
	return func(d lanyard.Dispatcher) widget.PresenceChannel {
		return lanyard.NewChannel(lanyard.ChannelConfig{
			Endpoint:  a.cfg.Discord.SocketURL,
			UserAgent: a.cfg.HTTP.UserAgent,
			Reconnect: a.cfg.Discord.Reconnect,
			Logger:    a.log,
		}, a.bus, d, nil)
	}
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}

	return fallback
}
