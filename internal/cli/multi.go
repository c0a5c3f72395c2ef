package cli

import (
	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/internal/report"
	"github.com/spf13/cobra"
)

func newMultiCmd(a *app) *cobra.Command {
	var flags scenarioFlags
	cmd := &cobra.Command{
		Use:   "multi",
		Short: "Run several diseases under one health system and sum the outcomes",
		Long: `Run every disease independently and in parallel with the shared health system
and AI configuration, each against its own baseline, and report the
per-disease and aggregate outcomes.

Examples:
  simulator multi --diseases malaria,pneumonia,tuberculosis --ai diagnosticAI
  simulator multi -f programme.yaml --json`,
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
			diseases := file.DiseaseList()
			if len(diseases) == 0 {
				return core.ErrNoDiseases
			}

			intervention, baseline, err := a.runner.RunMultiCompared(ctx, cfg, diseases)
			if err != nil {
				return err
			}
			if err := flags.saveScenario(ctx, a, file, cfg, intervention.Aggregate); err != nil {
				return err
			}

			if flags.jsonOut {
				return a.writeJSON(struct {
					Intervention *core.MultiDiseaseResults `json:"intervention"`
					Baseline     *core.MultiDiseaseResults `json:"baseline"`
				}{intervention, baseline})
			}
			return a.reporter(report.Options{Threshold: flags.threshold}).Multi(intervention, baseline)
		},
	}
	flags.register(cmd, true)
	return cmd
}
