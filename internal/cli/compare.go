package cli

import (
	"github.com/signalsfoundry/carecascade-simulator/internal/report"
	"github.com/spf13/cobra"
)

func newCompareCmd(a *app) *cobra.Command {
	var flags scenarioFlags
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare an AI scenario with its no-AI baseline",
		Long: `Run the scenario twice, with and without its AI interventions, and report
deaths and DALYs averted, the cost difference and the ICER.

Examples:
  simulator compare --disease pneumonia --ai chwAI,hospitalDecisionAI
  simulator compare -f scenario.json --threshold 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := flags.scenario(cmd, a)
			if err != nil {
				return err
			}
			cfg, err := file.Config()
			if err != nil {
				return err
			}

			out, err := a.runner.RunWithBaseline(ctx, cfg)
			if err != nil {
				return err
			}
			if err := flags.saveScenario(ctx, a, file, cfg, out.Intervention); err != nil {
				return err
			}

			if flags.jsonOut {
				return a.writeJSON(out)
			}
			return a.reporter(report.Options{Weekly: flags.weekly, Threshold: flags.threshold}).Outcome(out)
		},
	}
	flags.register(cmd, false)
	return cmd
}
