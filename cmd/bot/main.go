package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/config"
	"github.com/Hetham1/pillbot/internal/logging"
)

type CLI struct {
	Config string `short:"c" help:"Optional config file (yaml, json, toml or .env); environment variables win" type:"path"`

	Run    RunCmd    `cmd:"" default:"1" help:"Run the bot (default)"`
	Import ImportCmd `cmd:"" help:"Import the legacy JSON user and log files into the sqlite database"`
	Backup BackupCmd `cmd:"" help:"Write a compressed snapshot of the roster and all daily logs"`
}

// load reads the configuration and builds the logger it asks for.
func (c *CLI) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, logging.New("info", false), err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogPretty), nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pillbot"),
		kong.Description("Daily yes/no reminder bot for Telegram."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		log := logging.New("info", false)
		log.Error().Err(err).Str("command", ctx.Command()).Msg("Command failed")
		os.Exit(1)
	}
}
