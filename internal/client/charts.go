package client

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// LineChartRows is how many leading rows the parameters line chart plots.
const LineChartRows = 10

// Chart file names written by WriteCharts.
const (
	PieChartFile  = "type_distribution.png"
	BarChartFile  = "averages.png"
	LineChartFile = "parameters.png"
)

const (
	chartWidth  = 800
	chartHeight = 500
)

// ErrNoRows is returned by LineChart for a dataset without rows.
var ErrNoRows = errors.New("dataset has no rows to plot")

var parameterNames = []string{"flowrate", "pressure", "temperature"}

var parameterColors = []drawing.Color{chart.ColorBlue, chart.ColorRed, chart.ColorGreen}

// PieChart renders the equipment type distribution as PNG bytes.
func PieChart(s Summary) ([]byte, error) {
	types := make([]string, 0, len(s.TypeDistribution))
	for t, n := range s.TypeDistribution {
		if n > 0 {
			types = append(types, t)
		}
	}
	sort.Strings(types)

	values := make([]chart.Value, 0, len(types))
	for _, t := range types {
		label := t
		if label == "" {
			label = "(none)"
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%d)", label, s.TypeDistribution[t]),
			Value: float64(s.TypeDistribution[t]),
		})
	}
	if len(values) == 0 {
		values = []chart.Value{{Label: "No data", Value: 1, Style: chart.Style{FillColor: chart.ColorLightGray}}}
	}

	pie := chart.PieChart{
		Title:  "Equipment Type Distribution",
		Width:  chartWidth,
		Height: chartHeight,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

// BarChart renders the parameter averages as PNG bytes. Parameters without
// samples are labelled n/a and drawn as empty bars.
func BarChart(s Summary) ([]byte, error) {
	bars := make([]chart.Value, 0, len(parameterNames))
	averages := make([]float64, 0, len(parameterNames))
	for i, p := range parameterNames {
		avg, ok := s.Average(p)
		label := fmt.Sprintf("%s (%.2f)", p, avg)
		if !ok {
			label = p + " (n/a)"
		}
		bars = append(bars, chart.Value{
			Label: label,
			Value: avg,
			Style: chart.Style{FillColor: parameterColors[i], StrokeColor: parameterColors[i]},
		})
		averages = append(averages, avg)
	}
	minY, maxY := barRange(averages)

	// bars grow from zero so negative averages point down
	bar := chart.BarChart{
		Title:        "Average Parameters",
		Width:        chartWidth,
		Height:       chartHeight,
		BarWidth:     120,
		Background:   chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis:        chart.YAxis{Range: &chart.ContinuousRange{Min: minY, Max: maxY}},
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}

	var buf bytes.Buffer
	if err := bar.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

// barRange spans zero and every value with 10% headroom on each side.
func barRange(values []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == 0 && hi == 0 {
		return 0, 1
	}
	return lo * 1.1, hi * 1.1
}

// LineChart plots the three parameters of the first LineChartRows rows.
// Missing values are plotted as 0.
func LineChart(rows []Equipment) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if len(rows) > LineChartRows {
		rows = rows[:LineChartRows]
	}

	xs := make([]float64, len(rows))
	ys := make([][]float64, len(parameterNames))
	for i := range ys {
		ys[i] = make([]float64, len(rows))
	}

	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for i, row := range rows {
		xs[i] = float64(i + 1)
		for j, v := range []*float64{row.Flowrate, row.Pressure, row.Temperature} {
			if v != nil {
				ys[j][i] = *v
			}
			minY = math.Min(minY, ys[j][i])
			maxY = math.Max(maxY, ys[j][i])
		}
	}

	// a single point has no x extent; repeat it one step to the right
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1)
		for j := range ys {
			ys[j] = append(ys[j], ys[j][0])
		}
	}
	if maxY <= minY {
		maxY = minY + 1
	}

	series := make([]chart.Series, 0, len(parameterNames))
	for j, p := range parameterNames {
		series = append(series, chart.ContinuousSeries{
			Name:    p,
			XValues: xs,
			YValues: ys[j],
			Style: chart.Style{
				StrokeColor: parameterColors[j],
				StrokeWidth: 2,
				DotColor:    parameterColors[j],
				DotWidth:    3,
			},
		})
	}

	pad := (maxY - minY) * 0.05
	ch := chart.Chart{
		Title:      fmt.Sprintf("Parameters (first %d rows)", len(rows)),
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Row", Range: &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]}},
		YAxis:      chart.YAxis{Name: "Value", Range: &chart.ContinuousRange{Min: minY - pad, Max: maxY + pad}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render line chart: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCharts renders all three charts into dir and returns the written
// paths. The line chart is skipped for a dataset without rows.
func WriteCharts(dir string, s Summary, rows []Equipment) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	type job struct {
		file   string
		render func() ([]byte, error)
	}
	jobs := []job{
		{PieChartFile, func() ([]byte, error) { return PieChart(s) }},
		{BarChartFile, func() ([]byte, error) { return BarChart(s) }},
		{LineChartFile, func() ([]byte, error) { return LineChart(rows) }},
	}

	var written []string
	for _, j := range jobs {
		png, err := j.render()
		if errors.Is(err, ErrNoRows) {
			continue
		}
		if err != nil {
			return written, err
		}

		path := filepath.Join(dir, j.file)
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", j.file, err)
		}
		written = append(written, path)
	}

	return written, nil
}
