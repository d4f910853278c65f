package usecase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgerror"
)

const (
	ColumnName        = "Equipment Name"
	ColumnType        = "Type"
	ColumnFlowrate    = "Flowrate"
	ColumnPressure    = "Pressure"
	ColumnTemperature = "Temperature"
)

// RequiredColumns returns the CSV headers every upload must carry, in the
// order they are reported when missing.
func RequiredColumns() []string {
	return []string{ColumnName, ColumnType, ColumnFlowrate, ColumnPressure, ColumnTemperature}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads an equipment CSV. The first record is the header; columns are
// matched ignoring case and surrounding/repeated whitespace, and extra columns
// are ignored. A numeric cell that does not hold a finite number becomes nil
// without affecting the rest of its row.
func ParseCSV(ctx context.Context, r io.Reader) ([]entity.Equipment, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, pkgerror.NewInvalidInput(errors.New("csv file is empty"))
	}
	if err != nil {
		return nil, malformed(err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var (
		rows    []entity.Equipment
		missing int
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if blankRecord(record) {
			continue
		}

		row := entity.Equipment{
			Name:        cell(record, idx[ColumnName]),
			Type:        cell(record, idx[ColumnType]),
			Flowrate:    parseMeasurement(cell(record, idx[ColumnFlowrate])),
			Pressure:    parseMeasurement(cell(record, idx[ColumnPressure])),
			Temperature: parseMeasurement(cell(record, idx[ColumnTemperature])),
		}
		for _, p := range entity.Parameters() {
			if row.Value(p) == nil {
				missing++
			}
		}

		rows = append(rows, row)
	}

	if missing > 0 {
		slog.DebugContext(ctx, "csv contains missing measurements", "rows", len(rows), "missing_cells", missing)
	}

	return rows, nil
}

func columnIndex(header []string) (map[string]int, error) {
	seen := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := seen[key]; !dup {
			seen[key] = i
		}
	}

	idx := make(map[string]int, 5)
	var missing []string
	for _, col := range RequiredColumns() {
		i, ok := seen[normalizeHeader(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[col] = i
	}

	if len(missing) > 0 {
		return nil, pkgerror.NewInvalidInput(fmt.Errorf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	return idx, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseMeasurement(v string) *float64 {
	if v == "" {
		return nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	return &f
}

func malformed(err error) error {
	return pkgerror.NewInvalidInput(fmt.Errorf("malformed csv: %w", err))
}
