package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"mihac/internal/app"
	"mihac/internal/handlers"
	"mihac/internal/models"
	"mihac/internal/utils"
)

const stdinPath = "-"

func fileFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    usage,
		Required: true,
	}
}

func recordFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "record",
		Usage: "Send results to the configured sinks (store, audit log, reports, notifications)",
	}
}

func evaluateCmd(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Evaluate one profile or a list of profiles from a JSON or YAML file",
		Flags: []cli.Flag{
			fileFlag("Profile file (.json, .yaml, .yml), - for stdin"),
			formatFlag(),
			recordFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			name, data, err := readInput(cmd, cmd.String("file"))
			if err != nil {
				return err
			}
			profiles, errs := utils.DecodeProfileFile(name, data)
			if len(profiles) == 0 {
				if len(errs) == 0 {
					return errors.New("no profiles found")
				}
				return errors.Join(errs...)
			}

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if len(profiles) == 1 {
				result := a.Engine.Evaluate(profiles[0])
				record(ctx, cmd, a, "", result)
				return printResult(stdout(cmd), format, result)
			}
			resp := evaluateAll(ctx, cmd, a, profiles)
			for _, e := range errs {
				resp.Errors = append(resp.Errors, e.Error())
			}
			return printBatch(stdout(cmd), format, resp)
		},
	}
}

func batchCmd(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Evaluate every row of an applicant CSV file",
		Flags: []cli.Flag{
			fileFlag("CSV file, - for stdin"),
			formatFlag(),
			recordFlag(),
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
			profiles, errs := utils.NewCSVParser().ParseProfiles(string(data))
			if len(profiles) == 0 && len(errs) > 0 {
				return errors.Join(errs...)
			}

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer closeApp(a)

			resp := evaluateAll(ctx, cmd, a, profiles)
			for _, e := range errs {
				resp.Errors = append(resp.Errors, e.Error())
			}
			return printBatch(stdout(cmd), format, resp)
		},
	}
}

// readInput returns the file name used to pick a decoder and its content.
// Stdin is treated as JSON when it starts with { or [, YAML otherwise.
func readInput(cmd *cli.Command, path string) (string, []byte, error) {
	if path != stdinPath {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return path, data, nil
	}

	data, err := io.ReadAll(stdin(cmd))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "stdin.json", data, nil
	}
	return "stdin.yaml", data, nil
}

func evaluateAll(ctx context.Context, cmd *cli.Command, a *app.App, profiles []models.RawProfile) handlers.BatchResponse {
	batchID := uuid.New().String()
	results, err := a.Engine.EvaluateBatch(profiles)

	resp := handlers.BatchResponse{Results: results}
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
	}
	record(ctx, cmd, a, batchID, results...)
	resp.Summary = a.Engine.Summarize(batchID, results)
	return resp
}

// record forwards results to the sinks when --record is set. Sink failures
// are logged; the results are still printed.
func record(ctx context.Context, cmd *cli.Command, a *app.App, batchID string, results ...*models.EvaluationResult) {
	if !cmd.Bool("record") {
		return
	}
	if err := a.Recorder.Record(ctx, batchID, results...); err != nil {
		utils.GetLogger().Warn("Results recorded with errors", utils.String("batch_id", batchID), utils.Error(err))
	}
}

func printResult(w io.Writer, format string, r *models.EvaluationResult) error {
	if format == formatJSON {
		return writeJSON(w, r)
	}
	_, err := fmt.Fprintln(w, r.Explanation)
	return err
}

func printBatch(w io.Writer, format string, resp handlers.BatchResponse) error {
	if format == formatJSON {
		return writeJSON(w, resp)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tAPPLICANT\tDECISION\tSCORE\tDTI\tRULES")
	for i, r := range resp.Results {
		if r == nil {
			fmt.Fprintf(tw, "%d\t-\tERROR\t-\t-\t-\n", i)
			continue
		}
		score, dti := "-", "-"
		if r.Scored() {
			score = strconv.Itoa(r.Breakdown.FinalScore)
			dti = strconv.FormatFloat(r.Breakdown.DTI, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			r.Index, orDash(r.ApplicantID), r.Decision, score, dti, len(r.ActivatedRuleIDs()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := resp.Summary
	fmt.Fprintf(w, "\n%d evaluated: %d approved, %d manual review, %d rejected, %d invalid (approval rate %.1f%%)\n",
		s.Total, s.Approved, s.ManualReview, s.Rejected, s.Invalid, s.ApprovalRate*100)
	for _, e := range resp.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
