package cli

import (
	"github.com/signalsfoundry/carecascade-simulator/internal/report"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var flags scenarioFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario",
		Long: `Run one scenario and print its deaths, DALYs, costs and time to resolution.

Examples:
  simulator run --disease malaria --health-system weak-rural
  simulator run -f scenario.yaml --ai chwAI,triageAI --weekly
  simulator run --ai chwAI -m chwAI_mu0=1.5 --json`,
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

			res, err := a.runner.RunScenario(ctx, cfg)
			if err != nil {
				return err
			}
			if err := flags.saveScenario(ctx, a, file, cfg, res); err != nil {
				return err
			}

			if flags.jsonOut {
				return a.writeJSON(res)
			}
			label := "Scenario"
			if cfg.Name != "" {
				label = cfg.Name
			}
			return a.reporter(report.Options{Weekly: flags.weekly, Threshold: flags.threshold}).Result(label, res)
		},
	}
	flags.register(cmd, false)
	return cmd
}
