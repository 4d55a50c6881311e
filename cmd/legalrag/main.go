package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/aifinitydigital/groq-app-01/internal/config"
)

const configKey = "config"

func main() {
	_ = godotenv.Load()
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	filesFlag := &cli.StringSliceFlag{
		Name:    "files",
		Aliases: []string{"f"},
		Usage:   "Statute text files (globs allowed) to ingest before starting",
	}
	sessionFlag := &cli.StringFlag{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Session id to resume; a new one is created when empty",
	}
	return &cli.App{
		Name:  "legalrag",
		Usage: "Retrieval-augmented question answering over statute sections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config (default ./config.yaml, then ~/.config/legalrag/config.yaml)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Split statute text into sections and index them",
				ArgsUsage: "FILE [FILE...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Drop the existing collection first",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer one question",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags:     []cli.Flag{filesFlag, sessionFlag},
			},
			{
				Name:      "section",
				Usage:     "Print a section by number",
				ArgsUsage: "NUMBER",
				Action:    sectionCommand,
				Flags:     []cli.Flag{filesFlag},
			},
			{
				Name:   "chat",
				Usage:  "Interactive terminal chat",
				Action: chatCommand,
				Flags:  []cli.Flag{filesFlag, sessionFlag},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					filesFlag,
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address; overrides server.addr",
					},
				},
			},
			{
				Name:  "sessions",
				Usage: "Inspect stored chat sessions",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "List sessions", Action: sessionsListCommand},
					{Name: "show", Usage: "Print a session", ArgsUsage: "ID", Action: sessionsShowCommand},
					{Name: "delete", Usage: "Delete a session", ArgsUsage: "ID", Action: sessionsDeleteCommand},
				},
			},
		},
	}
}

// setup loads the config and installs the default slog logger.
func setup(c *cli.Context) error {
	var (
		cfg *config.AppConfig
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	levelStr := c.String("log-level")
	if levelStr == "" {
		levelStr = cfg.Logging.Level
	}
	logger, err := newLogger(levelStr, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func newLogger(levelStr, format string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}

func appConfig(c *cli.Context) *config.AppConfig {
	return c.App.Metadata[configKey].(*config.AppConfig)
}
