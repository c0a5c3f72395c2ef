package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/model"
)

// SimulationCollector exposes engine metrics. It satisfies
// core.RunMetricsRecorder and its ObserveWeek method can be registered as a
// core.WeekListener.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Runs               *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	ParameterWarnings  *prometheus.CounterVec
	Outcomes           *prometheus.GaugeVec
	QueueEntries       *prometheus.CounterVec
	UnservedShortfall  *prometheus.CounterVec
	CapacityMultiplier *prometheus.GaugeVec
}

// NewSimulationCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthsim_runs_total",
		Help: "Simulation runs, labeled by kind and result.",
	}, []string{"kind", "result"}), "healthsim_runs_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "healthsim_run_duration_seconds",
		Help:    "Wall-clock duration of simulation runs.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"kind"}), "healthsim_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	warnings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthsim_parameter_warnings_total",
		Help: "Parameters clamped or rescaled during resolution, labeled by disease.",
	}, []string{"disease"}), "healthsim_parameter_warnings_total")
	if err != nil {
		return nil, err
	}

	outcomes, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "healthsim_last_run_outcome",
		Help: "Outcomes of the most recent run per disease, labeled by metric.",
	}, []string{"disease", "metric"}), "healthsim_last_run_outcome")
	if err != nil {
		return nil, err
	}

	queued, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthsim_queue_entries_total",
		Help: "Patients that joined a queue, labeled by disease and care level.",
	}, []string{"disease", "level"}), "healthsim_queue_entries_total")
	if err != nil {
		return nil, err
	}

	unserved, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "healthsim_unserved_total",
		Help: "Capacity shortfall that neither entered care nor queued, labeled by disease.",
	}, []string{"disease"}), "healthsim_unserved_total")
	if err != nil {
		return nil, err
	}

	capacity, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "healthsim_capacity_multiplier",
		Help: "Capacity multiplier of the most recent simulated week, labeled by disease.",
	}, []string{"disease"}), "healthsim_capacity_multiplier")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:           gatherer,
		Runs:               runs,
		RunDuration:        duration,
		ParameterWarnings:  warnings,
		Outcomes:           outcomes,
		QueueEntries:       queued,
		UnservedShortfall:  unserved,
		CapacityMultiplier: capacity,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRun records one run of the given kind.
func (c *SimulationCollector) ObserveRun(kind string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Runs.WithLabelValues(kind, result).Inc()
	c.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordOutcome publishes the summary outcomes of a finished run.
func (c *SimulationCollector) RecordOutcome(disease string, res *model.SimulationResults) {
	if c == nil || res == nil {
		return
	}
	c.Outcomes.WithLabelValues(disease, "deaths").Set(res.CumulativeDeaths)
	c.Outcomes.WithLabelValues(disease, "resolved").Set(res.CumulativeResolved)
	c.Outcomes.WithLabelValues(disease, "dalys").Set(res.DALYs)
	c.Outcomes.WithLabelValues(disease, "cost").Set(res.TotalCost)
	c.Outcomes.WithLabelValues(disease, "unserved").Set(res.Unserved)
}

// AddParameterWarnings counts resolution warnings.
func (c *SimulationCollector) AddParameterWarnings(disease string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ParameterWarnings.WithLabelValues(disease).Add(float64(n))
}

// ObserveWeek records the queue and shortfall flows of one simulated week.
func (c *SimulationCollector) ObserveWeek(disease string, _ model.CompartmentState, f core.Flows) {
	if c == nil {
		return
	}
	for k := range model.NumLevels {
		if f.Queued[k] > 0 {
			c.QueueEntries.WithLabelValues(disease, model.Level(k).String()).Add(f.Queued[k])
		}
	}
	if f.Dropped > 0 {
		c.UnservedShortfall.WithLabelValues(disease).Add(f.Dropped)
	}
	c.CapacityMultiplier.WithLabelValues(disease).Set(f.CapacityMultiplier)
}

// Handler exposes a /metrics handler over the collector's gatherer.
func (c *SimulationCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

var _ core.RunMetricsRecorder = (*SimulationCollector)(nil)
