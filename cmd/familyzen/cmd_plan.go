/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/familyzen/internal/planner"
)

const planDateLayout = "2006-01-02"

type planOptions struct {
	wake     string
	school   string
	dinner   string
	chores   []string
	noChores bool
	date     string
	timezone string
	family   string
	format   string
	now      func() time.Time
}

func newPlanCmd() *cobra.Command {
	opts := &planOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a daily plan without running the server",
		Long: `Generate a daily plan from anchor times and chores and print it.

Anchors not given on the command line fall back to 07:00 / 08:30 / 19:00, and
the chore list falls back to "Set table", "Tidy room".

Examples:
  # Today's plan with all defaults
  familyzen plan

  # Early school start and a custom chore list
  familyzen plan --school 07:45 --chore "Feed cat" --chore "Water plants"

  # A fixed date as YAML
  familyzen plan --date 2024-01-15 --format yaml
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.wake, "wake", "", "Wake-up time (HH:MM)")
	cmd.Flags().StringVar(&opts.school, "school", "", "School start time (HH:MM)")
	cmd.Flags().StringVar(&opts.dinner, "dinner", "", "Dinner time (HH:MM)")
	cmd.Flags().StringArrayVar(&opts.chores, "chore", nil, "Chore to schedule after dinner (repeatable, in order)")
	cmd.Flags().BoolVar(&opts.noChores, "no-chores", false, "Schedule no chores at all")
	cmd.Flags().StringVar(&opts.date, "date", "", "Plan date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.timezone, "tz", "Local", "IANA timezone for the plan date")
	cmd.Flags().StringVar(&opts.family, "family", "0", "Family identifier recorded on the plan")
	cmd.Flags().StringVarP(&opts.format, "format", "o", "json", "Output format: json or yaml")
	cmd.MarkFlagsMutuallyExclusive("chore", "no-chores")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *planOptions) error {
	req := planRequest(cmd, opts)

	in, err := req.Resolve()
	if err != nil {
		return err
	}

	ref, err := opts.referenceDate()
	if err != nil {
		return err
	}

	plan := planner.Build(opts.family, in, ref)
	return writePlan(cmd.OutOrStdout(), opts.format, plan)
}

// planRequest marks only explicitly given flags as present.
func planRequest(cmd *cobra.Command, opts *planOptions) planner.Request {
	var req planner.Request
	flags := cmd.Flags()
	if flags.Changed("wake") {
		req.WakeUp = planner.Present(opts.wake)
	}
	if flags.Changed("school") {
		req.SchoolStart = planner.Present(opts.school)
	}
	if flags.Changed("dinner") {
		req.Dinner = planner.Present(opts.dinner)
	}
	switch {
	case opts.noChores:
		req.Chores = planner.Present([]string{})
	case flags.Changed("chore"):
		req.Chores = planner.Present(opts.chores)
	}
	return req
}

func (o *planOptions) referenceDate() (time.Time, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", o.timezone, err)
	}
	if o.date == "" {
		return o.now().In(loc), nil
	}
	ref, err := time.ParseInLocation(planDateLayout, o.date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", o.date)
	}
	return ref, nil
}

func writePlan(w io.Writer, format string, plan planner.Plan) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", format)
	}
}
