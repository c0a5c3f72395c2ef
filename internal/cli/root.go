// Package cli provides the command-line interface of the care-cascade
// simulator.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/internal/config"
	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/internal/observability"
	"github.com/signalsfoundry/carecascade-simulator/internal/report"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries the state shared by every command of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	// Global flags
	catalogPath string
	logLevel    string
	logFormat   string
	logFile     string
	verbose     bool

	cfg      config.Config
	log      logging.Logger
	runner   *core.Runner
	cleanups []func(context.Context) error
}

// NewRootCommand builds the command tree writing results to out and
// diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, log: logging.Noop()}

	root := &cobra.Command{
		Use:   "simulator",
		Short: "Weekly care-cascade simulator for AI interventions in health systems",
		Long: `simulator runs a weekly stock-and-flow model of patients moving through
untreated, informal and four formal care levels, with capacity-limited queues.

It reports deaths, DALYs and costs, and compares AI intervention scenarios
against a no-AI baseline with an incremental cost-effectiveness ratio.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.catalogPath, "catalog", "", "catalog file overlaid on the built-in catalog (env SIM_CATALOG_PATH)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json (env LOG_FORMAT)")
	pf.StringVar(&a.logFile, "log-file", "", "also write JSON logs to this file (env LOG_FILE)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every simulated week")

	root.AddCommand(
		newRunCmd(a),
		newCompareCmd(a),
		newMultiCmd(a),
		newCatalogCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the command tree against the process streams.
func Execute() error {
	return NewRootCommand(os.Stdout, os.Stderr).Execute()
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	a.cfg = config.Load()
	if a.catalogPath != "" {
		a.cfg.CatalogPath = a.catalogPath
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.LogFormat = a.logFormat
	}
	if a.logFile != "" {
		a.cfg.LogFile = a.logFile
	}
	if a.verbose {
		a.cfg.LogLevel = "debug"
	}

	logCfg := a.cfg.Logging()
	logCfg.Output = a.errOut
	log, closeLog := logging.Open(logCfg, a.cfg.LogFile)
	a.log = log
	a.cleanups = append(a.cleanups, func(context.Context) error { return closeLog() })

	ctx := cmd.Context()
	tracing := a.cfg.Tracing("cli", Version)
	tracing.Output = a.errOut
	shutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.cleanups = append(a.cleanups, func(ctx context.Context) error {
		observability.ShutdownWithTimeout(ctx, shutdown, log)
		return nil
	})

	store, err := a.cfg.Catalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	opts := []core.RunnerOption{
		core.WithLogger(log),
		core.WithDiscountRate(a.cfg.DiscountRate),
	}
	if a.cfg.MaxParallel > 0 {
		opts = append(opts, core.WithMaxParallel(a.cfg.MaxParallel))
	}
	a.runner = core.NewRunner(store, opts...)
	if a.verbose {
		a.runner.RegisterWeekListener(a.logWeek)
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var first error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.cleanups = nil
	return first
}

func (a *app) logWeek(disease string, s model.CompartmentState, f core.Flows) {
	a.log.Debug(context.Background(), "week simulated",
		logging.String("disease", disease),
		logging.Int("week", s.Week),
		logging.Float("new_cases", f.NewCases),
		logging.Float("queued", s.QueueTotal()),
		logging.Float("deaths", s.D),
		logging.Float("capacity", f.CapacityMultiplier),
	)
}

// reporter returns a report writer, styled when stdout is a terminal.
func (a *app) reporter(opts report.Options) *report.Writer {
	if f, ok := a.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts.Styled = true
	}
	return report.New(a.out, opts)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the simulator version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(a.out, "simulator %s\n", Version)
			return err
		},
	}
}
