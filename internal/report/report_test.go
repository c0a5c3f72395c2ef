package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/model"
)

func TestMoney(t *testing.T) {
	cases := map[float64]string{
		0:           "$0.00",
		12.345:      "$12.35",
		1234567.891: "$1,234,567.89",
		-2500:       "-$2,500.00",
		999.999:     "$1,000.00",
	}
	for in, want := range cases {
		if got := Money("$", in); got != want {
			t.Fatalf("Money(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestNumber(t *testing.T) {
	if got := Number(123456.78, 1); got != "123,456.8" {
		t.Fatalf("Number = %q", got)
	}
	if got := Number(5000, 0); got != "5,000" {
		t.Fatalf("Number = %q", got)
	}
	if got := Number(-0.25, 2); got != "-0.25" {
		t.Fatalf("Number = %q", got)
	}
}

func TestDescribeICER(t *testing.T) {
	raw := -10.0
	cases := []struct {
		icer *model.ICER
		raw  *float64
		want string
	}{
		{nil, nil, "n/a"},
		{&model.ICER{Status: model.ICERDominant, Quadrant: model.QuadrantDominant}, &raw, "dominant"},
		{&model.ICER{Status: model.ICERUndefined, Quadrant: model.QuadrantNone}, nil, "undefined"},
		{&model.ICER{Status: model.ICERRatio, Quadrant: model.QuadrantTradeoff, Value: 450}, nil, "$450.00 per DALY averted (tradeoff)"},
		{&model.ICER{Status: model.ICERRatio, Quadrant: model.QuadrantCostSavingWorse, Value: 20}, nil, "cost saving worse"},
	}
	for _, tc := range cases {
		if got := DescribeICER("$", tc.icer, tc.raw); !strings.Contains(got, tc.want) {
			t.Fatalf("DescribeICER(%v) = %q, want it to contain %q", tc.icer, got, tc.want)
		}
	}
}

func TestResultReport(t *testing.T) {
	var buf bytes.Buffer
	res := &model.SimulationResults{
		Disease:          "malaria",
		Weekly:           []model.CompartmentState{{}, {Week: 1, U: 10, D: 1}},
		CumulativeDeaths: 1,
		DALYs:            12.5,
		TotalCost:        98765.4,
		Unserved:         3,
		ICER:             &model.ICER{Status: model.ICERRatio, Quadrant: model.QuadrantTradeoff, Value: 300},
		Warnings:         []string{"mu0 = 1.2 exceeds 1, clamped"},
	}
	if err := New(&buf, Options{Weekly: true}).Result("Intervention", res); err != nil {
		t.Fatalf("Result: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Intervention: malaria",
		"$98,765.40",
		"Unserved",
		"$300.00 per DALY averted",
		"warning: mu0 = 1.2 exceeds 1, clamped",
		"week",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unstyled report contains escape codes:\n%s", out)
	}
}

func TestComparisonVerdict(t *testing.T) {
	var buf bytes.Buffer
	c := model.Comparison{
		DeathsAverted:  4,
		DALYsAverted:   10,
		CostDifference: 5000,
		ICER:           model.ICER{Status: model.ICERRatio, Quadrant: model.QuadrantTradeoff, Value: 500},
	}
	if err := New(&buf, Options{Threshold: 400}).Comparison(c); err != nil {
		t.Fatalf("Comparison: %v", err)
	}
	if !strings.Contains(buf.String(), "Cost-effective at $400.00/DALY  no") {
		t.Fatalf("unexpected verdict:\n%s", buf.String())
	}
}

func TestMultiReportListsSubstitutions(t *testing.T) {
	var buf bytes.Buffer
	res := &model.SimulationResults{Weekly: []model.CompartmentState{{}}, TotalCost: 10}
	multi := &core.MultiDiseaseResults{
		PerDisease:    map[string]*model.SimulationResults{"pneumonia": res, "malaria": res},
		Aggregate:     res,
		Substitutions: map[string]string{"pneumonia": "generic"},
	}
	if err := New(&buf, Options{}).Multi(multi, nil); err != nil {
		t.Fatalf("Multi: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "malaria") > strings.Index(out, "pneumonia") {
		t.Fatalf("diseases not sorted:\n%s", out)
	}
	if !strings.Contains(out, "baseline for pneumonia substituted with generic") {
		t.Fatalf("substitution missing:\n%s", out)
	}
}
