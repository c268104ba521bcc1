package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"mihac/internal/models"
	"mihac/internal/services/engine"
)

// demoResult pairs a sample with its evaluation for JSON output.
type demoResult struct {
	Sample      string                   `json:"sample"`
	Description string                   `json:"description"`
	Result      *models.EvaluationResult `json:"result"`
}

func demoCmd(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Evaluate the built-in sample profiles",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print the full explanation of every sample",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer closeApp(a)

			samples := engine.SampleProfiles()
			out := make([]demoResult, 0, len(samples))
			for _, s := range samples {
				out = append(out, demoResult{
					Sample:      s.Name,
					Description: s.Description,
					Result:      a.Engine.Evaluate(s.Raw),
				})
			}

			w := stdout(cmd)
			if format == formatJSON {
				return writeJSON(w, out)
			}
			for _, d := range out {
				score := "-"
				if d.Result.Scored() {
					score = strconv.Itoa(d.Result.Breakdown.FinalScore)
				}
				fmt.Fprintf(w, "[%s] %s\n  decision: %s  score: %s\n  %s\n",
					d.Sample, d.Description, d.Result.Decision, score, d.Result.Summary)
				if cmd.Bool("verbose") {
					fmt.Fprintf(w, "\n%s\n", d.Result.Explanation)
				}
				fmt.Fprintln(w)
			}

			st := a.Engine.Stats()
			fmt.Fprintf(w, "%d evaluated, approval rate %.1f%%, average score %.1f\n",
				st.TotalEvaluations, st.ApprovalRate*100, st.AverageScore)
			return nil
		},
	}
}
