package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// Report is a duration rollup ready to be rendered for download.
type Report struct {
	Title  string
	Period string
	Rows   []Row
}

// Row is one category line of the rollup.
type Row struct {
	Category string
	Minutes  int
}

var columns = []string{"Category", "Minutes", "Hours"}

// RenderCSV renders the report as CSV with a Category/Minutes/Hours
// header row.
func RenderCSV(report Report) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range report.Rows {
		record := []string{
			row.Category,
			strconv.Itoa(row.Minutes),
			formatHours(row.Minutes),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatHours(minutes int) string {
	return strconv.FormatFloat(float64(minutes)/60.0, 'f', 2, 64)
}
