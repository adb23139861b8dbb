// Package export writes forecast tables for downstream reporting tools.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sartorproj/salesforecast/reconcile"
)

// DateLayout is the date format of the date column.
const DateLayout = "2006-01-02"

// Header returns the column names for a table with the given dimensions.
func Header(dimensions []string) []string {
	header := make([]string, 0, len(dimensions)+5)
	header = append(header, "date")
	header = append(header, dimensions...)
	return append(header, "actual_sales", "predicted_sales", "lower_bound", "upper_bound")
}

// WriteCSV writes the table as CSV with one row per table row. Missing
// actuals are written as empty cells.
func WriteCSV(w io.Writer, table *reconcile.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header(table.Dimensions)); err != nil {
		return err
	}

	record := make([]string, 0, len(table.Dimensions)+5)
	for _, r := range table.Rows {
		record = record[:0]
		record = append(record, r.Date.Format(DateLayout))
		for i := range table.Dimensions {
			value := ""
			if i < len(r.Segment) {
				value = r.Segment[i].Value
			}
			record = append(record, value)
		}

		actual := ""
		if r.HasActual() {
			actual = formatFloat(*r.Actual)
		}
		record = append(record, actual, formatFloat(r.Predicted), formatFloat(r.Lower), formatFloat(r.Upper))

		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the table to filename, replacing any existing file.
func SaveCSV(table *reconcile.Table, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	buf := bufio.NewWriter(file)
	if err := WriteCSV(buf, table); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return buf.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
