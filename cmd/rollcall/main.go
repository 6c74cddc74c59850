package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logging"
)

const serviceName = "rollcall"

var opts struct {
	ConfigPath string
	Host       string
	Port       int
	Database   string
	RedisAddr  string
	JWTSecret  string
	LogLevel   string
	Console    bool
}

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    serviceName,
		Usage:   "live classroom attendance over REST and websockets",
		Version: logging.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a JSON config file",
				EnvVars:     []string{"ROLLCALL_CONFIG"},
				Destination: &opts.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "host",
				Usage:       "interface to listen on",
				Destination: &opts.Host,
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "HTTP port",
				Destination: &opts.Port,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "SQLite database path",
				Destination: &opts.Database,
			},
			&cli.StringFlag{
				Name:        "redis-addr",
				Usage:       "Redis host:port",
				Destination: &opts.RedisAddr,
			},
			&cli.StringFlag{
				Name:        "jwt-secret",
				Usage:       "secret for signing access tokens",
				Destination: &opts.JWTSecret,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "trace, debug, info, warn or error",
				Destination: &opts.LogLevel,
			},
			&cli.BoolFlag{
				Name:        "console",
				Usage:       "human-readable log output",
				Destination: &opts.Console,
			},
		},
		Action: run,
	}
}

// loadConfig layers command-line flags over file, environment and defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfigWithPrecedence(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if c.IsSet("host") {
		cfg.HTTP.Host = opts.Host
	}
	if c.IsSet("port") {
		cfg.HTTP.Port = opts.Port
	}
	if c.IsSet("db") {
		cfg.Database.Path = opts.Database
	}
	if c.IsSet("redis-addr") {
		cfg.Redis.Addr = opts.RedisAddr
	}
	if c.IsSet("jwt-secret") {
		cfg.Auth.JWTSecret = opts.JWTSecret
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = opts.LogLevel
	}
	if c.IsSet("console") {
		cfg.Log.Console = opts.Console
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := logging.New(serviceName, cfg.Log.Level, cfg.Log.Console)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	logger.Info().Str("addr", application.Addr()).Msg("starting rollcall")
	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
