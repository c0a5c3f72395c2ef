package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAPICollector(reg)
	if err != nil {
		t.Fatalf("NewAPICollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/healthsim.v1.SimulationService/RunSimulation"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SimulationService", "RunSimulation", "OK")); got != 1 {
		t.Fatalf("healthsim_api_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "healthsim_api_request_duration_seconds", map[string]string{
		"service": "SimulationService",
		"method":  "RunSimulation",
	}); count != 1 {
		t.Fatalf("healthsim_api_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAPICollector(reg)
	if err != nil {
		t.Fatalf("NewAPICollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/healthsim.v1.SimulationService/CompareScenarios"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SimulationService", "CompareScenarios", "InvalidArgument")); got != 1 {
		t.Fatalf("healthsim_api_requests_total error label = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesCatalogGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAPICollector(reg)
	if err != nil {
		t.Fatalf("NewAPICollector: %v", err)
	}
	collector.SetCatalogCounts(6, 4, 3, 7)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"healthsim_api_requests_total",
		`healthsim_catalog_entries{kind="disease"} 6`,
		`healthsim_catalog_entries{kind="health_system"} 4`,
		`healthsim_catalog_entries{kind="country"} 3`,
		`healthsim_catalog_entries{kind="intervention"} 7`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in /metrics output:\n%s", want, body)
		}
	}
}

func TestCollectorsTolerateReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	second, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimulationCollector: %v", err)
	}
	first.ObserveRun(core.RunKindScenario, time.Millisecond, nil)
	if got := testutil.ToFloat64(second.Runs.WithLabelValues(core.RunKindScenario, "ok")); got != 1 {
		t.Fatalf("shared runs counter = %v, want 1", got)
	}
}

func TestSimulationCollectorRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	c.ObserveRun(core.RunKindCompare, 2*time.Millisecond, nil)
	c.ObserveRun(core.RunKindCompare, time.Millisecond, errors.New("boom"))
	c.AddParameterWarnings("malaria", 2)
	c.AddParameterWarnings("malaria", 0)
	c.RecordOutcome("malaria", &model.SimulationResults{CumulativeDeaths: 12, DALYs: 340, TotalCost: 1e5})

	if got := testutil.ToFloat64(c.Runs.WithLabelValues(core.RunKindCompare, "ok")); got != 1 {
		t.Fatalf("runs ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Runs.WithLabelValues(core.RunKindCompare, "error")); got != 1 {
		t.Fatalf("runs error = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "healthsim_run_duration_seconds", map[string]string{"kind": core.RunKindCompare}); count != 2 {
		t.Fatalf("run duration samples = %d, want 2", count)
	}
	if got := testutil.ToFloat64(c.ParameterWarnings.WithLabelValues("malaria")); got != 2 {
		t.Fatalf("parameter warnings = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Outcomes.WithLabelValues("malaria", "dalys")); got != 340 {
		t.Fatalf("dalys gauge = %v, want 340", got)
	}
}

func TestSimulationCollectorObservesWeeks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	f := core.Flows{Dropped: 3, CapacityMultiplier: 0.5}
	f.Queued[model.LevelDistrict] = 4
	c.ObserveWeek("pneumonia", model.CompartmentState{}, f)
	c.ObserveWeek("pneumonia", model.CompartmentState{}, f)

	if got := testutil.ToFloat64(c.QueueEntries.WithLabelValues("pneumonia", "district")); got != 8 {
		t.Fatalf("queue entries = %v, want 8", got)
	}
	if got := testutil.ToFloat64(c.UnservedShortfall.WithLabelValues("pneumonia")); got != 6 {
		t.Fatalf("unserved = %v, want 6", got)
	}
	if got := testutil.ToFloat64(c.CapacityMultiplier.WithLabelValues("pneumonia")); got != 0.5 {
		t.Fatalf("capacity = %v, want 0.5", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *SimulationCollector
	c.ObserveRun("run", time.Second, nil)
	c.RecordOutcome("x", &model.SimulationResults{})
	c.AddParameterWarnings("x", 1)
	c.ObserveWeek("x", model.CompartmentState{}, core.Flows{})

	var a *APICollector
	a.SetCatalogCounts(1, 1, 1, 1)
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"/healthsim.v1.SimulationService/RunSimulation": {"SimulationService", "RunSimulation"},
		"":         {"unknown", "unknown"},
		"noslash":  {"unknown", "unknown"},
		"/svc/":    {"svc", "unknown"},
	}
	for in, want := range cases {
		svc, method := SplitMethod(in)
		if svc != want[0] || method != want[1] {
			t.Fatalf("SplitMethod(%q) = %q,%q want %q,%q", in, svc, method, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
