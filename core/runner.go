package core

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/signalsfoundry/carecascade-simulator/core"

// Run kinds reported to the metrics recorder.
const (
	RunKindSingle   = "run"
	RunKindScenario = "scenario"
	RunKindBaseline = "baseline"
	RunKindCompare  = "compare"
	RunKindMulti    = "multi"
)

// WeekListener observes every simulated week. Listeners may be invoked from
// several goroutines during multi-disease runs.
type WeekListener func(disease string, state model.CompartmentState, flows Flows)

// RunMetricsRecorder receives run-level telemetry.
type RunMetricsRecorder interface {
	ObserveRun(kind string, duration time.Duration, err error)
	RecordOutcome(disease string, res *model.SimulationResults)
	AddParameterWarnings(disease string, n int)
}

// RunnerOption customises Runner construction.
type RunnerOption func(*Runner)

// WithLogger sets the runner's structured logger.
func WithLogger(log logging.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m RunMetricsRecorder) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithDiscountRate overrides the annual DALY discount rate.
func WithDiscountRate(rate float64) RunnerOption {
	return func(r *Runner) {
		if rate >= 0 {
			r.discountRate = rate
		}
	}
}

// WithMaxParallel bounds the number of concurrent per-disease runs.
func WithMaxParallel(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// Runner drives weekly steps from an initial state and packages results.
// A single run is sequential; multi-disease runs execute in parallel.
type Runner struct {
	store    *kb.KnowledgeBase
	resolver *ParameterResolver
	log      logging.Logger
	metrics  RunMetricsRecorder

	discountRate float64
	maxParallel  int

	mu        sync.RWMutex
	listeners []WeekListener
}

// NewRunner builds a runner over the given knowledge base.
func NewRunner(store *kb.KnowledgeBase, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:        store,
		log:          logging.Noop(),
		discountRate: DefaultDiscountRate,
		maxParallel:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.resolver = NewParameterResolver(store, r.log)
	return r
}

// Resolver exposes the runner's parameter resolver.
func (r *Runner) Resolver() *ParameterResolver {
	return r.resolver
}

// KnowledgeBase exposes the catalog the runner resolves against.
func (r *Runner) KnowledgeBase() *kb.KnowledgeBase {
	return r.store
}

// RegisterWeekListener adds a listener called after every simulated week.
func (r *Runner) RegisterWeekListener(fn WeekListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Run simulates weeks steps from initial under params.
func (r *Runner) Run(ctx context.Context, initial model.CompartmentState, params *model.ResolvedParameters, weeks int) (res *model.SimulationResults, err error) {
	start := time.Now()
	defer func() { r.observe(RunKindSingle, start, err) }()
	return r.simulate(ctx, initial, params, weeks)
}

// RunScenario resolves cfg against the knowledge base and runs it.
func (r *Runner) RunScenario(ctx context.Context, cfg ScenarioConfig) (res *model.SimulationResults, err error) {
	start := time.Now()
	defer func() { r.observe(RunKindScenario, start, err) }()
	return r.runConfig(ctx, cfg)
}

// RunBaseline runs cfg with every AI intervention switched off.
func (r *Runner) RunBaseline(ctx context.Context, cfg ScenarioConfig) (res *model.SimulationResults, err error) {
	start := time.Now()
	defer func() { r.observe(RunKindBaseline, start, err) }()
	return r.runConfig(ctx, cfg.WithoutAI())
}

// ScenarioOutcome pairs an intervention run with its baseline.
type ScenarioOutcome struct {
	Intervention *model.SimulationResults `json:"intervention"`
	Baseline     *model.SimulationResults `json:"baseline"`
	Comparison   model.Comparison         `json:"comparison"`
}

// RunWithBaseline runs cfg and its AI-free baseline, and fills the
// intervention's ICER against that baseline.
func (r *Runner) RunWithBaseline(ctx context.Context, cfg ScenarioConfig) (out *ScenarioOutcome, err error) {
	start := time.Now()
	defer func() { r.observe(RunKindCompare, start, err) }()

	baseline, err := r.runConfig(ctx, cfg.WithoutAI())
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	result, err := r.runConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	attachBaseline(result, baseline)
	return &ScenarioOutcome{
		Intervention: result,
		Baseline:     baseline,
		Comparison:   Compare(result, baseline),
	}, nil
}

// MultiDiseaseResults holds independent per-disease runs and their sum.
type MultiDiseaseResults struct {
	PerDisease map[string]*model.SimulationResults `json:"perDisease"`
	Aggregate  *model.SimulationResults            `json:"aggregate"`
	// Substitutions maps a disease to the baseline key used in place of its
	// missing baseline.
	Substitutions map[string]string `json:"substitutions,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// Diseases returns the disease IDs in sorted order.
func (m *MultiDiseaseResults) Diseases() []string {
	ids := make([]string, 0, len(m.PerDisease))
	for id := range m.PerDisease {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunMulti runs cfg once per disease with the shared health-system and AI
// configuration. When baselines is non-empty every disease gets an ICER; a
// disease without its own baseline uses the generic one, or the first
// available, and the substitution is reported.
func (r *Runner) RunMulti(ctx context.Context, cfg ScenarioConfig, diseases []string, baselines map[string]*model.SimulationResults) (out *MultiDiseaseResults, err error) {
	start := time.Now()
	defer func() { r.observe(RunKindMulti, start, err) }()
	return r.runMulti(ctx, cfg, diseases, baselines)
}

// RunMultiCompared runs the AI-free baselines for every disease first and
// then the intervention runs against them.
func (r *Runner) RunMultiCompared(ctx context.Context, cfg ScenarioConfig, diseases []string) (intervention, baseline *MultiDiseaseResults, err error) {
	start := time.Now()
	defer func() { r.observe(RunKindMulti, start, err) }()

	baseline, err = r.runMulti(ctx, cfg.WithoutAI(), diseases, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline: %w", err)
	}
	intervention, err = r.runMulti(ctx, cfg, diseases, baseline.PerDisease)
	if err != nil {
		return nil, nil, err
	}
	return intervention, baseline, nil
}

func (r *Runner) runMulti(ctx context.Context, cfg ScenarioConfig, diseases []string, baselines map[string]*model.SimulationResults) (*MultiDiseaseResults, error) {
	ids := uniqueIDs(diseases)
	if len(ids) == 0 {
		return nil, ErrNoDiseases
	}

	results := make([]*model.SimulationResults, len(ids))
	fixedCosts := make([]float64, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel)
	for i, id := range ids {
		g.Go(func() error {
			params, err := r.resolver.Resolve(gctx, cfg.ForDisease(id))
			if err != nil {
				return fmt.Errorf("disease %s: %w", id, err)
			}
			res, err := r.simulateConfig(gctx, cfg.WithDefaults(), params)
			if err != nil {
				return fmt.Errorf("disease %s: %w", id, err)
			}
			results[i] = res
			fixedCosts[i] = params.Costs.AIFixedCost
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &MultiDiseaseResults{
		PerDisease: make(map[string]*model.SimulationResults, len(ids)),
	}
	for i, id := range ids {
		out.PerDisease[id] = results[i]
	}

	var aggregateBaseline *model.SimulationResults
	if len(baselines) > 0 {
		aggregateBaseline = &model.SimulationResults{}
		for _, id := range ids {
			base, key := pickBaseline(id, baselines)
			if base == nil {
				continue
			}
			if key != id {
				if out.Substitutions == nil {
					out.Substitutions = make(map[string]string)
				}
				out.Substitutions[id] = key
				msg := fmt.Sprintf("no baseline for disease %q, substituted baseline %q", id, key)
				out.Warnings = append(out.Warnings, msg)
				res := out.PerDisease[id]
				res.Warnings = append(res.Warnings, msg)
				logging.FromContextOr(ctx, r.log).Warn(ctx, "baseline substituted",
					logging.String("disease", id),
					logging.String("baseline", key),
				)
			}
			attachBaseline(out.PerDisease[id], base)
			aggregateBaseline.TotalCost += base.TotalCost
			aggregateBaseline.DALYs += base.DALYs
		}
	}

	out.Aggregate = aggregateResults(results, fixedCosts)
	out.Aggregate.Warnings = append(out.Aggregate.Warnings, out.Warnings...)
	if aggregateBaseline != nil {
		attachBaseline(out.Aggregate, aggregateBaseline)
	}
	return out, nil
}

// pickBaseline returns the baseline for id, or the generic one, or the
// first in key order. The second value is the key actually used.
func pickBaseline(id string, baselines map[string]*model.SimulationResults) (*model.SimulationResults, string) {
	if b, ok := baselines[id]; ok && b != nil {
		return b, id
	}
	if b, ok := baselines[kb.GenericID]; ok && b != nil {
		return b, kb.GenericID
	}
	keys := make([]string, 0, len(baselines))
	for k, b := range baselines {
		if b != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ""
	}
	sort.Strings(keys)
	return baselines[keys[0]], keys[0]
}

// aggregateResults sums per-disease outcomes. The AI fixed cost is a single
// programme cost, so it is counted once across diseases.
func aggregateResults(results []*model.SimulationResults, fixedCosts []float64) *model.SimulationResults {
	agg := &model.SimulationResults{Disease: "aggregate"}
	var weightedTime, resolvedDuringRun, maxFixed, sumFixed float64
	for i, res := range results {
		agg.CumulativeDeaths += res.CumulativeDeaths
		agg.CumulativeResolved += res.CumulativeResolved
		agg.TotalCost += res.TotalCost
		agg.DALYs += res.DALYs
		agg.PatientDays += res.PatientDays
		agg.Unserved += res.Unserved

		if n := len(res.Weekly); n > 0 {
			resolved := res.Weekly[n-1].R - res.Weekly[0].R
			weightedTime += res.AverageTimeToResolution * resolved
			resolvedDuringRun += resolved
		}
		for w, s := range res.Weekly {
			if w >= len(agg.Weekly) {
				agg.Weekly = append(agg.Weekly, model.CompartmentState{Week: s.Week})
			}
			addState(&agg.Weekly[w], s)
		}

		sumFixed += fixedCosts[i]
		maxFixed = max(maxFixed, fixedCosts[i])
	}
	agg.TotalCost -= sumFixed - maxFixed
	if resolvedDuringRun > 0 {
		agg.AverageTimeToResolution = weightedTime / resolvedDuringRun
	}
	return agg
}

func addState(dst *model.CompartmentState, s model.CompartmentState) {
	dst.U += s.U
	dst.I += s.I
	for k := range model.NumLevels {
		dst.L[k] += s.L[k]
		dst.Q[k] += s.Q[k]
	}
	dst.R += s.R
	dst.D += s.D
	dst.NewCases += s.NewCases
	dst.Unserved += s.Unserved
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (r *Runner) runConfig(ctx context.Context, cfg ScenarioConfig) (*model.SimulationResults, error) {
	cfg = cfg.WithDefaults()
	params, err := r.resolver.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return r.simulateConfig(ctx, cfg, params)
}

func (r *Runner) simulateConfig(ctx context.Context, cfg ScenarioConfig, params *model.ResolvedParameters) (*model.SimulationResults, error) {
	if r.metrics != nil && len(params.Warnings) > 0 {
		r.metrics.AddParameterWarnings(params.Disease, len(params.Warnings))
	}
	initial := model.CompartmentState{}
	if cfg.Initial != nil {
		initial = *cfg.Initial
	}
	return r.simulate(ctx, initial, params, cfg.Weeks)
}

// simulate is the panic-safe core loop shared by every entry point.
func (r *Runner) simulate(ctx context.Context, initial model.CompartmentState, params *model.ResolvedParameters, weeks int) (res *model.SimulationResults, err error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", ErrInvalidParameter)
	}
	if weeks <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, weeks)
	}
	if err := validateState(initial); err != nil {
		return nil, err
	}

	ctx, log, runID := logging.WithRunLogger(ctx, r.log)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("disease", params.Disease),
		attribute.String("health_system", params.HealthSystem),
		attribute.Int("weeks", weeks),
		attribute.Int("ai_active", len(params.ActiveAI.Active())),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrRunPanicked, rec)
			log.Error(ctx, "simulation run panicked", logging.Err(err))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	r.mu.RLock()
	listeners := append([]WeekListener(nil), r.listeners...)
	r.mu.RUnlock()

	weekly := make([]model.CompartmentState, 0, weeks+1)
	state := initial
	weekly = append(weekly, state)
	for range weeks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var flows Flows
		state, flows = StepWithFlows(state, params)
		weekly = append(weekly, state)
		for _, fn := range listeners {
			fn(params.Disease, state, flows)
		}
	}

	res = Aggregate(weekly, params, r.discountRate)
	res.RunID = runID
	if r.metrics != nil {
		r.metrics.RecordOutcome(params.Disease, res)
	}

	log.Debug(ctx, "simulation run complete",
		logging.String("disease", params.Disease),
		logging.Int("weeks", weeks),
		logging.Float("deaths", res.CumulativeDeaths),
		logging.Float("resolved", res.CumulativeResolved),
		logging.Float("cost", res.TotalCost),
		logging.Float("dalys", res.DALYs),
	)
	return res, nil
}

func (r *Runner) observe(kind string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveRun(kind, time.Since(start), err)
}
