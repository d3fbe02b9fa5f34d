package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/promptcompliance/internal/app"
	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

var (
	evalUser       string
	evalResponse   string
	evalGuidelines []string
	evalProvider   string
	evalModel      string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score one exchange against the reference dataset and guidelines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if evalUser == "" || evalResponse == "" {
			return errors.New("--user and --response are required")
		}
		req := models.EvaluationRequest{
			UserMessage:   evalUser,
			ModelResponse: evalResponse,
			Guidelines:    evalGuidelines,
			LLMProvider:   evalProvider,
			ModelName:     evalModel,
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Evaluations.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract-guidelines <file>",
	Short: "Extract checkable guidelines from a system prompt file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read system prompt: %w", err)
		}
		systemPrompt := strings.TrimSpace(string(data))
		if systemPrompt == "" {
			return errors.New("system prompt file is empty")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gw, err := llm.NewGateway(cfg.LLM)
		if err != nil {
			return err
		}
		checker := compliance.NewChecker(gw, compliance.NewMemoryStore(), cfg.Evaluation.JudgeLocale)

		guidelines := checker.ExtractGuidelines(cmd.Context(), systemPrompt, compliance.Options{
			Provider: evalProvider,
			Model:    evalModel,
		})
		return printJSON(cmd.OutOrStdout(), map[string][]string{"guidelines": guidelines})
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalUser, "user", "", "user message")
	evaluateCmd.Flags().StringVar(&evalResponse, "response", "", "model response to score")
	evaluateCmd.Flags().StringArrayVar(&evalGuidelines, "guideline", nil, "guideline to judge (repeatable)")

	for _, c := range []*cobra.Command{evaluateCmd, extractCmd} {
		c.Flags().StringVar(&evalProvider, "provider", "", "LLM provider override")
		c.Flags().StringVar(&evalModel, "model", "", "model override")
	}

	rootCmd.AddCommand(evaluateCmd, extractCmd)
}
