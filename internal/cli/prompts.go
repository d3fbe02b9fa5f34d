package cli

import (
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/promptcompliance/internal/app"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored prompt versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			history, err := a.Improver.History(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), history)
		})
	},
}

var (
	improveRationale  string
	improveReevaluate bool
	improveTarget     float64
)

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Generate a new prompt version from recent violations or a rationale",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.PromptImproveRequest{
			Rationale:       improveRationale,
			RunReevaluation: improveReevaluate,
		}
		if cmd.Flags().Changed("target") {
			req.TargetScore = &improveTarget
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			if req.Rationale == "" {
				// Fresh process: prime the rolling history from storage.
				recent, err := a.Evaluations.Recent(cmd.Context(), 50)
				if err != nil {
					return err
				}
				a.Improver.RecordEvaluations(reversed(recent))
			}
			resp, err := a.Improver.Improve(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		})
	},
}

var reevaluateCmd = &cobra.Command{
	Use:   "reevaluate <version-id>",
	Short: "Replay the scenario suite against a stored prompt version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Improver.Reevaluate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func reversed(in []models.EvaluationResult) []models.EvaluationResult {
	out := make([]models.EvaluationResult, len(in))
	for i, e := range in {
		out[len(in)-1-i] = e
	}
	return out
}

func init() {
	improveCmd.Flags().StringVar(&improveRationale, "rationale", "", "reason for the rewrite (derived from recent evaluations when empty)")
	improveCmd.Flags().BoolVar(&improveReevaluate, "reevaluate", false, "replay the scenario suite against the new version")
	improveCmd.Flags().Float64Var(&improveTarget, "target", 0, "target overall score between 0 and 1")

	rootCmd.AddCommand(historyCmd, improveCmd, reevaluateCmd)
}
