package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/plan"
)

func newPlanCmd(g *globals) *cobra.Command {
	planCmd := &cobra.Command{Use: "plan", Short: "Work through an exercise plan"}

	var planID string
	planCmd.PersistentFlags().StringVar(&planID, "plan", "", "plan id (default: today's plan)")

	// load opens a tracker over the configured plan service.
	load := func(ctx context.Context) (*plan.Tracker, error) {
		cfg, err := g.config()
		if err != nil {
			return nil, err
		}
		if g.userID == "" {
			return nil, fmt.Errorf("%w: --user is required", apperrors.ErrBadInput)
		}
		client := plan.NewClient(cfg.GetPlanURL(), g.userID, httputil.NewStandardClient(0), cfg.GetRequestTimeout())
		return plan.LoadTracker(ctx, client, planID)
	}

	planCmd.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Show today's plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			planID = ""
			t, err := load(cmd.Context())
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), t.Plan())
			return nil
		},
	})

	planCmd.AddCommand(&cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID = args[0]
			t, err := load(cmd.Context())
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), t.Plan())
			return nil
		},
	})

	var rating int
	var notes string
	complete := &cobra.Command{
		Use:   "complete <exercise-id>",
		Short: "Mark an exercise complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := load(cmd.Context())
			if err != nil {
				return err
			}
			var r *int
			if cmd.Flags().Changed("rating") {
				r = &rating
			}
			if err := t.MarkComplete(cmd.Context(), args[0], r, notes); err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), t)
			return nil
		},
	}
	complete.Flags().IntVar(&rating, "rating", 0, "difficulty rating 1-5")
	complete.Flags().StringVar(&notes, "notes", "", "free-form notes")
	planCmd.AddCommand(complete)

	planCmd.AddCommand(&cobra.Command{
		Use:   "undo <exercise-id>",
		Short: "Mark an exercise not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if err := t.UndoComplete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), t)
			return nil
		},
	})

	planCmd.AddCommand(&cobra.Command{
		Use:   "complete-all",
		Short: "Mark every exercise complete",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if err := t.MarkAllComplete(cmd.Context()); err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), t)
			return nil
		},
	})

	planCmd.AddCommand(&cobra.Command{
		Use:   "problems",
		Short: "Show the gait problems the plan targets, most urgent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := load(cmd.Context())
			if err != nil {
				return err
			}
			printProblems(cmd.OutOrStdout(), t.Plan().DetectedProblems)
			return nil
		},
	})

	return planCmd
}

func printPlan(out io.Writer, p *plan.Plan) {
	_, _ = fmt.Fprintf(out, "plan %s (%s)\n", p.ID, p.Date)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range p.Exercises {
		mark := "[ ]"
		if e.Completed {
			mark = "[x]"
		}
		rating := ""
		if e.Rating != nil {
			rating = fmt.Sprintf("%d/5", *e.Rating)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, e.ID, e.Name, rating)
	}
	_ = tw.Flush()
	printSummary(out, p)
}

func printProgress(out io.Writer, t *plan.Tracker) {
	printSummary(out, t.Plan())
}

func printSummary(out io.Writer, p *plan.Plan) {
	_, _ = fmt.Fprintf(out, "%d/%d done (%d%%)\n", p.CompletedCount(), p.TotalCount(), p.CompletionPercentage())
	if p.CanRetestGait() {
		_, _ = fmt.Fprintln(out, "gait retest unlocked")
	}
}

func printProblems(out io.Writer, problems []plan.Problem) {
	s := plan.SummarizeProblems(problems)
	_, _ = fmt.Fprintf(out, "status: %s, risk: %s\n", s.OverallStatus, s.RiskLevel)
	_, _ = fmt.Fprintln(out, s.Summary)
	for i, p := range plan.PrioritizeProblems(problems) {
		_, _ = fmt.Fprintf(out, "%d. %s (%s, %s)\n", i+1, p.Problem, p.Severity, p.Category)
	}
}
