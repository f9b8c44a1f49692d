package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"seisqc/internal/domain"
	"seisqc/internal/simple"
)

var (
	day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
	recs = []domain.MetricRecord{
		{MetricName: "num_gaps", SNCLID: "IU.ANMO.00.BHZ", Start: day1, End: day2, Value: 2},
		{MetricName: "sample_mean", SNCLID: "IU.ANMO..LHZ", Start: day1, End: day2, Value: -0.125},
	}
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, recs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "metricName,snclId,starttime,endtime,value\n" +
		"num_gaps,IU.ANMO.00.BHZ,2024-03-01T00:00:00.000000Z,2024-03-02T00:00:00.000000Z,2\n" +
		"sample_mean,IU.ANMO..LHZ,2024-03-01T00:00:00.000000Z,2024-03-02T00:00:00.000000Z,-0.125\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVFileRoundTrip(t *testing.T) {
	for _, name := range []string{"metrics.csv", "metrics.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)
			if err := WriteCSVFile(path, recs); err != nil {
				t.Fatalf("WriteCSVFile: %v", err)
			}
			got := readCSVFile(t, path)
			if diff := cmp.Diff(recs, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// readCSVFile parses a file written by WriteCSVFile.
func readCSVFile(t *testing.T, path string) []domain.MetricRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("%s is not gzip-compressed: %v", path, err)
		}
		defer zr.Close()
		r = zr
	}

	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if len(rows) == 0 || strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		t.Fatalf("%s: missing header, got %v", path, rows)
	}

	var out []domain.MetricRecord
	for _, row := range rows[1:] {
		start, err1 := time.Parse(TimeLayout, row[2])
		end, err2 := time.Parse(TimeLayout, row[3])
		value, err3 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			t.Fatalf("%s: bad row %v", path, row)
		}
		out = append(out, domain.MetricRecord{MetricName: row[0], SNCLID: row[1], Start: start, End: end, Value: value})
	}
	return out
}

func TestWriteSummary(t *testing.T) {
	s := simple.Summary{
		Status:          simple.StatusOK,
		Days:            2,
		DaysSkipped:     1,
		ChannelDays:     6,
		ChannelsSkipped: map[string]int{"no_data": 2, "multiple_epochs": 1},
		MetricFailures:  map[string]int{},
		Frames:          9,
		Records:         42,
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, s, 1500*time.Millisecond); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`seisqc_run_status{status="ok"} 1`,
		"seisqc_run_duration_seconds 1.5",
		"# TYPE seisqc_days_total counter",
		`seisqc_days_total{state="processed"} 2`,
		`seisqc_days_total{state="skipped"} 1`,
		`seisqc_channels_skipped_total{reason="multiple_epochs"} 1`,
		`seisqc_channels_skipped_total{reason="no_data"} 2`,
		"seisqc_records_total 42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "seisqc_metric_failures_total") {
		t.Errorf("empty family should be omitted:\n%s", out)
	}
}
