package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/salesforecast/prophet"
	"github.com/sartorproj/salesforecast/reconcile"
	"github.com/sartorproj/salesforecast/timeseries"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func result(t *testing.T, key reconcile.SegmentKey) *reconcile.SegmentResult {
	t.Helper()
	actuals, err := timeseries.NewWithTimestamps([]time.Time{month(2020, 1), month(2020, 2)}, []float64{100, 0})
	require.NoError(t, err)

	points := []prophet.Point{
		{Period: month(2020, 1), Predicted: 101.5, Lower: 90, Upper: 110},
		{Period: month(2020, 2), Predicted: 2, Lower: -8, Upper: 12},
		{Period: month(2020, 3), Predicted: 50.25, Lower: 30, Upper: 70.75},
	}
	return reconcile.Merge(key, actuals, points)
}

func TestWriteCSV_Global(t *testing.T) {
	table := reconcile.NewTable("run", nil)
	table.Append(result(t, nil))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"date", "actual_sales", "predicted_sales", "lower_bound", "upper_bound"},
		{"2020-01-01", "100", "101.5", "90", "110"},
		{"2020-02-01", "0", "2", "-8", "12"},
		{"2020-03-01", "", "50.25", "30", "70.75"},
	}, records)
}

func TestWriteCSV_Segmented(t *testing.T) {
	east := reconcile.SegmentKey{{Name: "Region", Value: "East"}, {Name: "Category", Value: "Office, Supplies"}}
	west := reconcile.SegmentKey{{Name: "Region", Value: "West"}, {Name: "Category", Value: "Tech"}}

	table := reconcile.NewTable("run", []string{"Region", "Category"})
	table.Append(result(t, east))
	table.Append(result(t, west))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 7)
	assert.Equal(t, []string{"date", "Region", "Category", "actual_sales", "predicted_sales", "lower_bound", "upper_bound"}, records[0])
	assert.Equal(t, []string{"2020-01-01", "East", "Office, Supplies", "100", "101.5", "90", "110"}, records[1])
	assert.Equal(t, []string{"2020-03-01", "West", "Tech", "", "50.25", "30", "70.75"}, records[6])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, reconcile.NewTable("run", []string{"Region"})))
	assert.Equal(t, "date,Region,actual_sales,predicted_sales,lower_bound,upper_bound\n", buf.String())
}

func TestSaveCSV(t *testing.T) {
	table := reconcile.NewTable("run", nil)
	table.Append(result(t, nil))

	path := filepath.Join(t.TempDir(), "forecast.csv")
	require.NoError(t, SaveCSV(table, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2020-03-01,,50.25,30,70.75\n")

	assert.Error(t, SaveCSV(table, filepath.Join(t.TempDir(), "missing", "forecast.csv")))
}
