package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"mihac/internal/models"
	"mihac/internal/services/backtest"
	"mihac/internal/utils"
)

// backtestOutput is the JSON shape printed by backtest.
type backtestOutput struct {
	backtest.Report
	Skipped []string `json:"skipped,omitempty"`
}

func backtestCmd(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Compare decisions on a labelled applicant CSV against the known outcomes",
		Flags: []cli.Flag{
			fileFlag("Labelled CSV file, - for stdin"),
			&cli.StringFlag{
				Name:  "label-column",
				Value: backtest.DefaultLabelColumn,
				Usage: "Column holding the known outcome (good/bad, 1/0, APROBADO/RECHAZADO)",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			_, data, err := readInput(cmd, cmd.String("file"))
			if err != nil {
				return err
			}
			if err := utils.PreflightCSV(string(data)); err != nil {
				return err
			}
			rows, errs := utils.NewCSVParser().ParseProfiles(string(data))
			if len(rows) == 0 && len(errs) > 0 {
				return errors.Join(errs...)
			}

			profiles, labels, skipped, err := splitLabels(rows, cmd.String("label-column"))
			if err != nil {
				return err
			}
			for _, e := range errs {
				skipped = append(skipped, e.Error())
			}

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer closeApp(a)

			results, err := a.Engine.EvaluateBatch(profiles)
			if err != nil {
				skipped = append(skipped, err.Error())
			}
			rep, err := backtest.Compute(results, labels)
			if err != nil {
				return err
			}

			out := backtestOutput{Report: rep, Skipped: skipped}
			if format == formatJSON {
				return writeJSON(stdout(cmd), out)
			}
			return printBacktest(stdout(cmd), out)
		},
	}
}

// splitLabels reads the outcome of every row. Rows with an unreadable
// outcome are left out and described in skipped.
func splitLabels(rows []models.RawProfile, column string) ([]models.RawProfile, []bool, []string, error) {
	key := models.FoldKey(column)
	profiles := make([]models.RawProfile, 0, len(rows))
	labels := make([]bool, 0, len(rows))
	var skipped []string

	for i, row := range rows {
		v, ok := row[key]
		if !ok {
			if i == 0 {
				return nil, nil, nil, fmt.Errorf("label column %q not found", column)
			}
			skipped = append(skipped, fmt.Sprintf("row %d: no %s value", i+1, column))
			continue
		}
		good, err := backtest.ParseLabel(v)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("row %d: %s", i+1, err))
			continue
		}
		profiles = append(profiles, row)
		labels = append(labels, good)
	}
	if len(profiles) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: %s", backtest.ErrNoLabelledRows, strings.Join(skipped, "; "))
	}
	return profiles, labels, skipped, nil
}

func printBacktest(w io.Writer, out backtestOutput) error {
	c, m := out.Confusion, out.Metrics
	fmt.Fprintf(w, "Backtest over %d labelled rows (APROBADO counts as a predicted good payer)\n\n", out.Total)
	fmt.Fprintf(w, "%-14s %-16s %s\n", "", "predicted good", "predicted bad")
	fmt.Fprintf(w, "%-14s TP %-13d FN %d\n", "actual good", c.TruePositives, c.FalseNegatives)
	fmt.Fprintf(w, "%-14s FP %-13d TN %d\n\n", "actual bad", c.FalsePositives, c.TrueNegatives)

	fmt.Fprintf(w, "accuracy %.4f  precision %.4f  recall %.4f  specificity %.4f  f1 %.4f\n\n",
		m.Accuracy, m.Precision, m.Recall, m.Specificity, m.F1)

	for _, d := range models.Decisions() {
		fmt.Fprintf(w, "  %-16s %d\n", d, out.Decisions[d])
	}
	fmt.Fprintln(w)

	printErrorProfile(w, "false positives", out.FalsePositives)
	printErrorProfile(w, "false negatives", out.FalseNegatives)
	for _, s := range out.Skipped {
		fmt.Fprintf(w, "skipped: %s\n", s)
	}
	return nil
}

func printErrorProfile(w io.Writer, name string, p backtest.ErrorProfile) {
	if p.Count == 0 {
		fmt.Fprintf(w, "%s: 0\n", name)
		return
	}
	rules := make([]string, 0, len(p.TopRules))
	for _, r := range p.TopRules {
		rules = append(rules, fmt.Sprintf("%s(%d)", r.ID, r.Count))
	}
	fmt.Fprintf(w, "%s: %d  avg score %.1f  avg DTI %.2f  top rules: %s\n",
		name, p.Count, p.AverageScore, p.AverageDTI, orDash(strings.Join(rules, " ")))
}
