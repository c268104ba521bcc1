package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"mihac/internal/models"
)

var errNoStore = errors.New("no evaluation store configured (set STORE_DRIVER to postgres or sqlite)")

func dashboardCmd(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Summarize the evaluations persisted in the configured store",
		Flags: []cli.Flag{formatFlag()},
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

			if a.Store == nil {
				return errNoStore
			}
			d, err := a.Store.Dashboard(ctx)
			if err != nil {
				return fmt.Errorf("failed to load dashboard: %w", err)
			}

			w := stdout(cmd)
			if format == formatJSON {
				return writeJSON(w, d)
			}

			fmt.Fprintf(w, "Evaluations: %d  approval rate: %.1f%%  avg score: %.1f  avg DTI: %.2f\n\n",
				d.Total, d.ApprovalRate*100, d.AverageScore, d.AverageDTI)
			for _, dec := range models.Decisions() {
				fmt.Fprintf(w, "  %-16s %d\n", dec, d.ByDecision[dec])
			}
			fmt.Fprintln(w)

			peak := 0
			for _, b := range d.ScoreHistogram {
				peak = max(peak, b.Count)
			}
			for _, b := range d.ScoreHistogram {
				width := 0
				if peak > 0 {
					width = b.Count * 30 / peak
				}
				fmt.Fprintf(w, "  %3d-%-3d %s %d\n", b.Lower, b.Upper, strings.Repeat("#", width), b.Count)
			}
			return nil
		},
	}
}
