package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"mihac/internal/services/rules"
)

// rulesSummary is the JSON shape printed by rules check.
type rulesSummary struct {
	Source     string               `json:"source"`
	Version    string               `json:"version"`
	Hash       string               `json:"hash"`
	Weights    rules.WeightTable    `json:"weights"`
	Thresholds rules.ThresholdTable `json:"thresholds"`
	Rules      []ruleSummary        `json:"rules"`
}

type ruleSummary struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Impact   int    `json:"impact"`
}

func rulesCmd() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Inspect rule configurations",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Load and validate a rule file without evaluating anything",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Rule file to check (optional, defaults to the embedded rules)",
					},
					formatFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					format, err := outputFormat(cmd)
					if err != nil {
						return err
					}

					var cfg *rules.RuleConfig
					if path := cmd.String("file"); path != "" {
						cfg, err = rules.Load(path)
					} else {
						cfg, err = rules.Default()
					}
					if err != nil {
						return err
					}
					return printRules(cmd, format, cfg)
				},
			},
		},
	}
}

func printRules(cmd *cli.Command, format string, cfg *rules.RuleConfig) error {
	out := rulesSummary{
		Source:     cfg.Source,
		Version:    cfg.Version,
		Hash:       cfg.Hash,
		Weights:    cfg.Weights,
		Thresholds: cfg.Thresholds,
		Rules:      make([]ruleSummary, 0, len(cfg.Rules)),
	}
	for _, r := range cfg.Rules {
		out.Rules = append(out.Rules, ruleSummary{ID: r.ID, Category: string(r.Category), Impact: r.Impact})
	}

	w := stdout(cmd)
	if format == formatJSON {
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "OK %s (version %s, %d rules, hash %s)\n\n", out.Source, out.Version, len(out.Rules), out.Hash)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tIMPACT")
	for _, r := range out.Rules {
		fmt.Fprintf(tw, "%s\t%s\t%+d\n", r.ID, r.Category, r.Impact)
	}
	return tw.Flush()
}
