// Package report writes run results and run summaries.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"seisqc/internal/domain"
)

// TimeLayout is the timestamp format of CSV output.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

var csvHeader = []string{"metricName", "snclId", "starttime", "endtime", "value"}

// WriteCSV writes recs to w with a header row.
func WriteCSV(w io.Writer, recs []domain.MetricRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.MetricName,
			r.SNCLID,
			r.Start.UTC().Format(TimeLayout),
			r.End.UTC().Format(TimeLayout),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes recs to path, gzip-compressed when path ends in ".gz".
func WriteCSVFile(path string, recs []domain.MetricRecord) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return WriteCSV(f, recs)
	}
	zw := gzip.NewWriter(f)
	if err := WriteCSV(zw, recs); err != nil {
		return err
	}
	return zw.Close()
}
