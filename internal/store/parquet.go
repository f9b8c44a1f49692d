package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"seisqc/internal/domain"
	"seisqc/internal/util"
)

var _ WaveformStore = (*ParquetStore)(nil)

// ParquetStore implements WaveformStore using one Parquet file per channel
// per UTC day.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// SegmentRecord is the Parquet schema of one contiguous trace.
type SegmentRecord struct {
	Start         int64     `parquet:"start,timestamp(nanosecond)"` // Unix ns
	SampleRate    float64   `parquet:"sample_rate"`
	Samples       []float64 `parquet:"samples,list"`
	Flags         []string  `parquet:"flags,list"`
	TimingQuality *int32    `parquet:"timing_quality"`
}

// MetricRow is the Parquet schema of one metric result.
type MetricRow struct {
	MetricName string  `parquet:"metric_name,dict"`
	SNCLID     string  `parquet:"sncl_id,dict"`
	Start      int64   `parquet:"start,timestamp(millisecond)"` // Unix ms
	End        int64   `parquet:"end,timestamp(millisecond)"`   // Unix ms
	Value      float64 `parquet:"value"`
}

// WriteTraces writes traces to the day file of their start time, merging
// with segments already stored there. A segment with the same start replaces
// the stored one.
//
//	<DataDir>/waveforms/<NET.STA.LOC.CHA>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteTraces(_ context.Context, sncl domain.SNCL, traces []domain.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	groups := make(map[string][]SegmentRecord)
	for _, tr := range traces {
		date := util.DateString(tr.Start)
		groups[date] = append(groups[date], toSegment(tr))
	}

	for date, records := range groups {
		path := s.segmentPath(sncl.ID(), date)
		existing, _ := readParquetFile[SegmentRecord](path)
		merged := mergeSegments(existing, records)
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing traces for %s/%s: %w", sncl.ID(), date, err)
		}
	}
	return nil
}

// ReadTraces reads the segments of channel id overlapping [start, end) and
// clips them to the window. The day before start is included so segments
// crossing midnight are found.
func (s *ParquetStore) ReadTraces(_ context.Context, id string, start, end time.Time) ([]domain.Trace, error) {
	var out []domain.Trace
	for d := util.StartOfUTCDay(start).Add(-util.Day); d.Before(end); d = d.Add(util.Day) {
		path := s.segmentPath(id, util.DateString(d))
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		records, err := readParquetFile[SegmentRecord](path)
		if err != nil {
			return nil, fmt.Errorf("reading %s/%s: %w", id, util.DateString(d), err)
		}
		for _, r := range records {
			if tr, ok := clipTrace(fromSegment(r), start, end); ok {
				out = append(out, tr)
			}
		}
	}
	return out, nil
}

// HasData reports whether channel id has a day file for any day in [start, end).
func (s *ParquetStore) HasData(id string, start, end time.Time) bool {
	for d := util.StartOfUTCDay(start); d.Before(end); d = d.Add(util.Day) {
		if _, err := os.Stat(s.segmentPath(id, util.DateString(d))); err == nil {
			return true
		}
	}
	return false
}

// ListChannels lists all channels that have waveform data.
func (s *ParquetStore) ListChannels(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "waveforms"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// WriteMetricsParquet writes recs to a single Parquet file at path.
func WriteMetricsParquet(path string, recs []domain.MetricRecord) error {
	rows := make([]MetricRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, MetricRow{
			MetricName: r.MetricName,
			SNCLID:     r.SNCLID,
			Start:      r.Start.UnixMilli(),
			End:        r.End.UnixMilli(),
			Value:      r.Value,
		})
	}
	return writeParquetFile(path, rows)
}

// segmentPath returns the filesystem path of a channel day file.
func (s *ParquetStore) segmentPath(id, date string) string {
	return filepath.Join(s.DataDir, "waveforms", id, date+".parquet")
}

func toSegment(tr domain.Trace) SegmentRecord {
	rec := SegmentRecord{
		Start:      tr.Start.UnixNano(),
		SampleRate: tr.SampleRate,
		Samples:    tr.Samples,
		Flags:      tr.Flags,
	}
	if tr.TimingQuality != nil {
		q := int32(*tr.TimingQuality)
		rec.TimingQuality = &q
	}
	return rec
}

func fromSegment(r SegmentRecord) domain.Trace {
	tr := domain.Trace{
		Start:      time.Unix(0, r.Start).UTC(),
		SampleRate: r.SampleRate,
		Samples:    r.Samples,
		Flags:      r.Flags,
	}
	if r.TimingQuality != nil {
		q := int(*r.TimingQuality)
		tr.TimingQuality = &q
	}
	return tr
}

// clipTrace keeps the samples of tr falling in [start, end). It reports
// false when none do.
func clipTrace(tr domain.Trace, start, end time.Time) (domain.Trace, bool) {
	if len(tr.Samples) == 0 || tr.SampleRate <= 0 {
		return tr, false
	}
	if !tr.End().After(start) || !tr.Start.Before(end) {
		return tr, false
	}

	first := 0
	if tr.Start.Before(start) {
		first = int(math.Ceil(start.Sub(tr.Start).Seconds() * tr.SampleRate))
	}
	last := len(tr.Samples)
	if n := int(math.Ceil(end.Sub(tr.Start).Seconds() * tr.SampleRate)); n < last {
		last = n
	}
	if first >= last {
		return tr, false
	}

	offset := time.Duration(float64(first) / tr.SampleRate * float64(time.Second))
	tr.Start = tr.Start.Add(offset)
	tr.Samples = tr.Samples[first:last]
	return tr, true
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeSegments deduplicates segments by start time, preferring incoming
// records over existing ones. Results are sorted by start.
func mergeSegments(existing, incoming []SegmentRecord) []SegmentRecord {
	seen := make(map[int64]SegmentRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Start] = r
	}
	for _, r := range incoming {
		seen[r.Start] = r
	}

	merged := make([]SegmentRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	return merged
}
