// Package report renders simulation results as human-readable text.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/model"
)

// DefaultThreshold is the willingness-to-pay per DALY averted used when
// classifying an ICER as cost-effective.
const DefaultThreshold = 1000.0

// Options controls rendering.
type Options struct {
	// Styled enables terminal colours.
	Styled bool
	// Weekly appends the weekly trajectory table.
	Weekly bool
	// Threshold is the willingness-to-pay per DALY. Zero means
	// DefaultThreshold.
	Threshold float64
	// Currency prefixes money values.
	Currency string
}

// Writer renders reports onto an io.Writer.
type Writer struct {
	w    io.Writer
	opts Options

	title lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

// New returns a Writer over w.
func New(w io.Writer, opts Options) *Writer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Currency == "" {
		opts.Currency = "$"
	}
	rw := &Writer{w: w, opts: opts}
	if opts.Styled {
		rw.title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFD7"))
		rw.good = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787"))
		rw.bad = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F"))
		rw.dim = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true)
	}
	return rw
}

func (rw *Writer) style(s lipgloss.Style, text string) string {
	if !rw.opts.Styled {
		return text
	}
	return s.Render(text)
}

// Money formats v with two decimals and thousands separators.
func Money(currency string, v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + currency + group(whole) + "." + frac
}

// Number formats v with the given number of decimals and thousands
// separators.
func Number(v float64, places int32) string {
	d := decimal.NewFromFloat(v).Round(places)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, found := strings.Cut(d.StringFixed(places), ".")
	if !found {
		return sign + group(whole)
	}
	return sign + group(whole) + "." + frac
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// DescribeICER renders an ICER. raw may be nil.
func DescribeICER(currency string, icer *model.ICER, raw *float64) string {
	if icer == nil {
		return "n/a (no baseline)"
	}
	switch icer.Status {
	case model.ICERDominant:
		if raw != nil {
			return fmt.Sprintf("dominant (cost saving, raw %s/DALY)", Money(currency, *raw))
		}
		return "dominant (cost saving)"
	case model.ICERUndefined:
		return "undefined (no DALY difference)"
	default:
		return fmt.Sprintf("%s per DALY averted (%s)", Money(currency, icer.Value), strings.ReplaceAll(string(icer.Quadrant), "_", " "))
	}
}

// Result renders the summary of a single run.
func (rw *Writer) Result(label string, res *model.SimulationResults) error {
	if res == nil {
		return nil
	}
	header := label
	if res.Disease != "" {
		header = fmt.Sprintf("%s: %s", label, res.Disease)
	}
	fmt.Fprintln(rw.w, rw.style(rw.title, header))

	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Weeks\t%d\n", len(res.Weekly)-1)
	fmt.Fprintf(tw, "  Deaths\t%s\n", Number(res.CumulativeDeaths, 1))
	fmt.Fprintf(tw, "  Resolved\t%s\n", Number(res.CumulativeResolved, 1))
	fmt.Fprintf(tw, "  DALYs\t%s\n", Number(res.DALYs, 1))
	fmt.Fprintf(tw, "  Total cost\t%s\n", Money(rw.opts.Currency, res.TotalCost))
	fmt.Fprintf(tw, "  Patient days\t%s\n", Number(res.PatientDays, 0))
	fmt.Fprintf(tw, "  Avg time to resolution\t%s weeks\n", Number(res.AverageTimeToResolution, 2))
	if res.Unserved > 0 {
		fmt.Fprintf(tw, "  Unserved\t%s\n", rw.style(rw.bad, Number(res.Unserved, 1)))
	}
	if res.ICER != nil {
		fmt.Fprintf(tw, "  ICER\t%s\n", rw.icer(res.ICER, res.RawICER))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, w := range res.Warnings {
		fmt.Fprintln(rw.w, rw.style(rw.dim, "  warning: "+w))
	}
	if rw.opts.Weekly {
		return rw.Trajectory(res.Weekly)
	}
	return nil
}

func (rw *Writer) icer(icer *model.ICER, raw *float64) string {
	text := DescribeICER(rw.opts.Currency, icer, raw)
	if icer.CostEffective(rw.opts.Threshold) {
		return rw.style(rw.good, text)
	}
	if icer.Status == model.ICERRatio && icer.Quadrant == model.QuadrantDominated {
		return rw.style(rw.bad, text)
	}
	return text
}

// Comparison renders incremental metrics.
func (rw *Writer) Comparison(c model.Comparison) error {
	fmt.Fprintln(rw.w, rw.style(rw.title, "Comparison vs baseline"))
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Deaths averted\t%s\n", Number(c.DeathsAverted, 1))
	fmt.Fprintf(tw, "  DALYs averted\t%s\n", Number(c.DALYsAverted, 1))
	fmt.Fprintf(tw, "  Cost difference\t%s\n", Money(rw.opts.Currency, c.CostDifference))
	icer := c.ICER
	fmt.Fprintf(tw, "  ICER\t%s\n", rw.icer(&icer, c.RawICER))
	verdict := "no"
	if icer.CostEffective(rw.opts.Threshold) {
		verdict = "yes"
	}
	fmt.Fprintf(tw, "  Cost-effective at %s/DALY\t%s\n", Money(rw.opts.Currency, rw.opts.Threshold), verdict)
	return tw.Flush()
}

// Outcome renders an intervention run, its baseline and their comparison.
func (rw *Writer) Outcome(out *core.ScenarioOutcome) error {
	if out == nil {
		return nil
	}
	if err := rw.Result("Baseline", out.Baseline); err != nil {
		return err
	}
	fmt.Fprintln(rw.w)
	if err := rw.Result("Intervention", out.Intervention); err != nil {
		return err
	}
	fmt.Fprintln(rw.w)
	return rw.Comparison(out.Comparison)
}

// Multi renders a multi-disease run. baseline may be nil.
func (rw *Writer) Multi(intervention, baseline *core.MultiDiseaseResults) error {
	if intervention == nil {
		return nil
	}
	fmt.Fprintln(rw.w, rw.style(rw.title, "Per disease"))
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  Disease\tDeaths\tDALYs\tCost\tICER")
	for _, id := range intervention.Diseases() {
		res := intervention.PerDisease[id]
		icer := "n/a"
		if res.ICER != nil {
			icer = DescribeICER(rw.opts.Currency, res.ICER, res.RawICER)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", id,
			Number(res.CumulativeDeaths, 1),
			Number(res.DALYs, 1),
			Money(rw.opts.Currency, res.TotalCost),
			icer,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	subs := make([]string, 0, len(intervention.Substitutions))
	for id := range intervention.Substitutions {
		subs = append(subs, id)
	}
	sort.Strings(subs)
	for _, id := range subs {
		fmt.Fprintln(rw.w, rw.style(rw.dim,
			fmt.Sprintf("  baseline for %s substituted with %s", id, intervention.Substitutions[id])))
	}

	fmt.Fprintln(rw.w)
	weekly := rw.opts.Weekly
	rw.opts.Weekly = false
	defer func() { rw.opts.Weekly = weekly }()
	if err := rw.Result("Aggregate", intervention.Aggregate); err != nil {
		return err
	}
	if baseline == nil || baseline.Aggregate == nil || intervention.Aggregate == nil {
		return nil
	}
	fmt.Fprintln(rw.w)
	return rw.Comparison(core.Compare(intervention.Aggregate, baseline.Aggregate))
}

// Trajectory renders the weekly compartment table.
func (rw *Writer) Trajectory(weekly []model.CompartmentState) error {
	tw := tabwriter.NewWriter(rw.w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "week\tU\tI\tL0\tL1\tL2\tL3\tQ\tR\tD\t")
	for _, s := range weekly {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", s.Week,
			Number(s.U, 1), Number(s.I, 1),
			Number(s.L[0], 1), Number(s.L[1], 1), Number(s.L[2], 1), Number(s.L[3], 1),
			Number(s.QueueTotal(), 1), Number(s.R, 1), Number(s.D, 1),
		)
	}
	return tw.Flush()
}
