package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
)

var barColor = color.RGBA{R: 0x36, G: 0x7A, B: 0xB8, A: 0xFF}

// averagesChart draws one bar per parameter as a PNG. Parameters without
// samples are drawn as zero-height bars.
func averagesChart(summary entity.Summary, width, height vg.Length) ([]byte, error) {
	params := entity.Parameters()
	values := make(plotter.Values, len(params))
	labels := make([]string, len(params))
	for i, p := range params {
		values[i] = summary.Averages[p].Value
		labels[i] = parameterLabel(p)
	}

	p := plot.New()
	p.Title.Text = "Average Parameters"
	p.Y.Label.Text = "Average"

	bars, err := plotter.NewBarChart(values, vg.Points(36))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p.Add(bars, plotter.NewGrid())
	p.NominalX(labels...)

	if p.Y.Min > 0 {
		p.Y.Min = 0
	}
	if p.Y.Max < 0 {
		p.Y.Max = 0
	}
	if p.Y.Max <= p.Y.Min {
		p.Y.Max = p.Y.Min + 1
	}

	w, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart writer: %w", err)
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}

	return buf.Bytes(), nil
}

func parameterLabel(p entity.Parameter) string {
	switch p {
	case entity.ParameterFlowrate:
		return "Flowrate"
	case entity.ParameterPressure:
		return "Pressure"
	case entity.ParameterTemperature:
		return "Temperature"
	default:
		return string(p)
	}
}
