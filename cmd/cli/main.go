// Package main is the mihac command line: evaluate profiles, run CSV
// batches, check rule files and read the dashboard of the configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"mihac/internal/app"
	"mihac/internal/config"
	"mihac/internal/utils"
)

const (
	name = "mihac"

	formatText = "text"
	formatJSON = "json"
)

var version = "v0.0.1-default"

// options holds the root flags shared by every command.
type options struct {
	rulesPath string
	strict    bool
	logLevel  string
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	opts := &options{}

	return &cli.Command{
		Name:    name,
		Version: version,
		Usage:   "Credit applicant inference engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "rules",
				Usage:       "Path to a YAML rule configuration (optional, defaults to the embedded rules)",
				Sources:     cli.EnvVars("RULES_PATH"),
				Destination: &opts.rulesPath,
			},
			&cli.BoolFlag{
				Name:        "strict",
				Usage:       "Treat validation warnings as errors",
				Sources:     cli.EnvVars("STRICT_WARNINGS"),
				Destination: &opts.strict,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "warn",
				Destination: &opts.logLevel,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := utils.InitLogger(opts.logLevel); err != nil {
				return ctx, fmt.Errorf("failed to initialize logger: %w", err)
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			utils.Sync()
			return nil
		},
		Commands: []*cli.Command{
			evaluateCmd(opts),
			batchCmd(opts),
			rulesCmd(),
			demoCmd(opts),
			dashboardCmd(opts),
			backtestCmd(opts),
		},
	}
}

// buildApp loads the environment configuration and applies the root flags.
func buildApp(ctx context.Context, opts *options) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.rulesPath != "" {
		cfg.RulesPath = opts.rulesPath
	}
	cfg.StrictWarnings = cfg.StrictWarnings || opts.strict
	return app.New(ctx, cfg)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		utils.GetLogger().Warn("Failed to close resources", zap.Error(err))
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stdin(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"o"},
		Usage:   "Output format (text, json)",
		Value:   formatText,
	}
}

func outputFormat(cmd *cli.Command) (string, error) {
	switch f := cmd.String("format"); f {
	case formatText, formatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q: want text or json", f)
	}
}
