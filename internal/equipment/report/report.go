package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-pdf/fpdf"
	"gonum.org/v1/plot/vg"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
)

const (
	margin    = 15.0
	rowHeight = 7.0
	chartName = "averages"
)

type column struct {
	title string
	width float64
	align string
}

var columns = []column{
	{title: "Name", width: 55, align: "L"},
	{title: "Type", width: 35, align: "L"},
	{title: "Flowrate", width: 30, align: "R"},
	{title: "Pressure", width: 30, align: "R"},
	{title: "Temperature", width: 35, align: "R"},
}

// Renderer lays out a dataset report as a Letter portrait PDF.
//
// Output is a pure function of the input: document dates come from the
// dataset upload time and the catalog is written in sorted order.
type Renderer struct {
	// Chart toggles the averages bar chart.
	Chart bool
}

func NewRenderer() *Renderer {
	return &Renderer{Chart: true}
}

func (r *Renderer) Render(summary entity.Summary, rows []entity.Equipment) ([]byte, error) {
	ds := summary.Dataset

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCreationDate(ds.UploadedAt)
	pdf.SetModificationDate(ds.UploadedAt)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Equipment Dataset Report: "+ds.Name), false)
	pdf.SetCreator("equipment-api", false)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr("Equipment Dataset Report: "+ds.Name), "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	info := [][2]string{
		{"Dataset", ds.Name},
		{"File", ds.FileName},
		{"Uploaded", ds.UploadedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total Equipment", strconv.Itoa(ds.TotalCount)},
	}
	for _, kv := range info {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, kv[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, fit(pdf, tr(kv[1]), 140), "", 1, "L", false, 0, "")
	}

	section(pdf, "Summary Statistics")
	tableHeader(pdf, []column{{"Parameter", 60, "L"}, {"Average", 40, "R"}, {"Samples", 30, "R"}})
	pdf.SetFont("Helvetica", "", 10)
	for _, p := range entity.Parameters() {
		m := summary.Averages[p]
		pdf.CellFormat(60, rowHeight, parameterLabel(p), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, rowHeight, formatMean(m), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, rowHeight, strconv.Itoa(m.Count), "1", 1, "R", false, 0, "")
	}

	section(pdf, "Equipment Type Distribution")
	types := make([]string, 0, len(summary.TypeDistribution))
	for t := range summary.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)
	tableHeader(pdf, []column{{"Type", 60, "L"}, {"Count", 30, "R"}})
	pdf.SetFont("Helvetica", "", 10)
	for _, t := range types {
		label := t
		if label == "" {
			label = "(none)"
		}
		pdf.CellFormat(60, rowHeight, fit(pdf, tr(label), 58), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, rowHeight, strconv.Itoa(summary.TypeDistribution[t]), "1", 1, "R", false, 0, "")
	}

	if r.Chart {
		if err := drawChart(pdf, summary); err != nil {
			return nil, err
		}
	}

	section(pdf, "Equipment Details")
	if ds.TotalCount > len(rows) {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Showing first %d of %d rows", len(rows), ds.TotalCount), "", 1, "L", false, 0, "")
	}

	_, pageHeight := pdf.GetPageSize()
	tableHeader(pdf, columns)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		if pdf.GetY()+rowHeight > pageHeight-margin {
			pdf.AddPage()
			tableHeader(pdf, columns)
			pdf.SetFont("Helvetica", "", 9)
		}

		cells := []string{
			tr(row.Name),
			tr(row.Type),
			formatValue(row.Flowrate),
			formatValue(row.Pressure),
			formatValue(row.Temperature),
		}
		for i, c := range columns {
			ln := 0
			if i == len(columns)-1 {
				ln = 1
			}
			pdf.CellFormat(c.width, rowHeight, fit(pdf, cells[i], c.width-2), "1", ln, c.align, false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func drawChart(pdf *fpdf.Fpdf, summary entity.Summary) error {
	const width, height = 120.0, 80.0

	png, err := averagesChart(summary, vg.Length(width)*vg.Millimeter, vg.Length(height)*vg.Millimeter)
	if err != nil {
		return err
	}

	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+height+8 > pageHeight-margin {
		pdf.AddPage()
	} else {
		pdf.Ln(4)
	}

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(chartName, opts, bytes.NewReader(png))
	pageWidth, _ := pdf.GetPageSize()
	pdf.ImageOptions(chartName, (pageWidth-width)/2, pdf.GetY(), width, height, true, opts, 0, "")

	return pdf.Error()
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func tableHeader(pdf *fpdf.Fpdf, cols []column) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(c.width, rowHeight, c.title, "1", ln, "C", true, 0, "")
	}
}

// fit cuts s so that it renders within width in the current font. s is
// already in the single-byte core font encoding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}

	const ellipsis = "..."
	cut := s
	for len(cut) > 0 {
		cut = cut[:len(cut)-1]
		if pdf.GetStringWidth(cut+ellipsis) <= width {
			break
		}
	}
	return cut + ellipsis
}

func formatMean(m entity.Mean) string {
	if !m.Valid() {
		return "N/A"
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

func formatValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
