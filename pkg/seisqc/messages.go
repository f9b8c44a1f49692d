package seisqc

import (
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service name of the metric run service.
	ServiceName = "seisqc.v1.SimpleMetrics"
	// RunMethod is the full method name of SimpleMetrics.Run.
	RunMethod = "/" + ServiceName + "/Run"
	// ListMethod is the full method name of SimpleMetrics.List.
	ListMethod = "/" + ServiceName + "/List"
)

// RunRequest selects what a run computes. End may be empty for a single day
// starting at Start. Metrics holds metric or family names.
type RunRequest struct {
	Start   string
	End     string
	Metrics []string
}

// Record is one metric value for one channel and window.
type Record struct {
	MetricName string
	SNCLID     string
	Start      time.Time
	End        time.Time
	Value      float64
}

// Summary counts what happened during a run.
type Summary struct {
	Days            int
	DaysSkipped     int
	ChannelDays     int
	Frames          int
	Records         int
	ChannelsSkipped map[string]int
	Ineligible      map[string]int
	MetricFailures  map[string]int
}

// RunResponse is the result of a run. Present is false when the run produced
// no metric output at all, which differs from a present table whose rows were
// all filtered out.
type RunResponse struct {
	Status  string
	Present bool
	Records []Record
	Summary Summary
}

// ListRequest selects saved records. An empty SNCLID matches every channel;
// an empty End means one day after Start.
type ListRequest struct {
	SNCLID string
	Start  string
	End    string
}

// ListResponse holds saved records ordered by channel, start and name.
type ListResponse struct {
	Records []Record
}

// Struct encodes r as a protobuf Struct.
func (r RunRequest) Struct() (*structpb.Struct, error) {
	metrics := make([]any, len(r.Metrics))
	for i, m := range r.Metrics {
		metrics[i] = m
	}
	return structpb.NewStruct(map[string]any{
		"start":   r.Start,
		"end":     r.End,
		"metrics": metrics,
	})
}

// DecodeRunRequest parses a RunRequest from s.
func DecodeRunRequest(s *structpb.Struct) (RunRequest, error) {
	m := s.AsMap()
	var req RunRequest
	var err error
	if req.Start, err = stringField(m, "start"); err != nil {
		return RunRequest{}, err
	}
	if req.End, err = stringField(m, "end"); err != nil {
		return RunRequest{}, err
	}
	switch v := m["metrics"].(type) {
	case nil:
	case []any:
		for i, item := range v {
			name, ok := item.(string)
			if !ok {
				return RunRequest{}, fmt.Errorf("metrics[%d]: want string, got %T", i, item)
			}
			req.Metrics = append(req.Metrics, name)
		}
	default:
		return RunRequest{}, fmt.Errorf("metrics: want list, got %T", v)
	}
	return req, nil
}

// Struct encodes r as a protobuf Struct. Times are RFC 3339 strings.
func (r RunResponse) Struct() (*structpb.Struct, error) {
	var records any
	if r.Present {
		records = encodeRecords(r.Records)
	}
	return structpb.NewStruct(map[string]any{
		"status":  r.Status,
		"records": records,
		"summary": map[string]any{
			"days":             r.Summary.Days,
			"days_skipped":     r.Summary.DaysSkipped,
			"channel_days":     r.Summary.ChannelDays,
			"frames":           r.Summary.Frames,
			"records":          r.Summary.Records,
			"channels_skipped": counts(r.Summary.ChannelsSkipped),
			"ineligible":       counts(r.Summary.Ineligible),
			"metric_failures":  counts(r.Summary.MetricFailures),
		},
	})
}

// DecodeRunResponse parses a RunResponse from s.
func DecodeRunResponse(s *structpb.Struct) (*RunResponse, error) {
	m := s.AsMap()
	resp := &RunResponse{}
	var err error
	if resp.Status, err = stringField(m, "status"); err != nil {
		return nil, err
	}

	if m["records"] != nil {
		resp.Present = true
		if resp.Records, err = decodeRecords(m["records"]); err != nil {
			return nil, err
		}
	}

	if sm, ok := m["summary"].(map[string]any); ok {
		resp.Summary = Summary{
			Days:            intField(sm, "days"),
			DaysSkipped:     intField(sm, "days_skipped"),
			ChannelDays:     intField(sm, "channel_days"),
			Frames:          intField(sm, "frames"),
			Records:         intField(sm, "records"),
			ChannelsSkipped: countsField(sm, "channels_skipped"),
			Ineligible:      countsField(sm, "ineligible"),
			MetricFailures:  countsField(sm, "metric_failures"),
		}
	}
	return resp, nil
}

// MetricNames returns the distinct metric names in the response, sorted.
func (r *RunResponse) MetricNames() []string {
	seen := make(map[string]struct{})
	for _, rec := range r.Records {
		seen[rec.MetricName] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Struct encodes r as a protobuf Struct.
func (r ListRequest) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"snclId": r.SNCLID,
		"start":  r.Start,
		"end":    r.End,
	})
}

// DecodeListRequest parses a ListRequest from s.
func DecodeListRequest(s *structpb.Struct) (ListRequest, error) {
	m := s.AsMap()
	var req ListRequest
	var err error
	if req.SNCLID, err = stringField(m, "snclId"); err != nil {
		return ListRequest{}, err
	}
	if req.Start, err = stringField(m, "start"); err != nil {
		return ListRequest{}, err
	}
	if req.End, err = stringField(m, "end"); err != nil {
		return ListRequest{}, err
	}
	return req, nil
}

// Struct encodes r as a protobuf Struct.
func (r ListResponse) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"records": encodeRecords(r.Records)})
}

// DecodeListResponse parses a ListResponse from s.
func DecodeListResponse(s *structpb.Struct) (*ListResponse, error) {
	recs, err := decodeRecords(s.AsMap()["records"])
	if err != nil {
		return nil, err
	}
	return &ListResponse{Records: recs}, nil
}

func encodeRecords(recs []Record) []any {
	rows := make([]any, len(recs))
	for i, rec := range recs {
		rows[i] = map[string]any{
			"metricName": rec.MetricName,
			"snclId":     rec.SNCLID,
			"starttime":  rec.Start.UTC().Format(time.RFC3339Nano),
			"endtime":    rec.End.UTC().Format(time.RFC3339Nano),
			"value":      rec.Value,
		}
	}
	return rows
}

func decodeRecords(v any) ([]Record, error) {
	switch rows := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]Record, 0, len(rows))
		for i, row := range rows {
			rec, err := decodeRecord(row)
			if err != nil {
				return nil, fmt.Errorf("records[%d]: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("records: want list, got %T", rows)
	}
}

func decodeRecord(v any) (Record, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Record{}, fmt.Errorf("want object, got %T", v)
	}
	var rec Record
	var err error
	if rec.MetricName, err = stringField(m, "metricName"); err != nil {
		return Record{}, err
	}
	if rec.SNCLID, err = stringField(m, "snclId"); err != nil {
		return Record{}, err
	}
	if rec.Start, err = timeField(m, "starttime"); err != nil {
		return Record{}, err
	}
	if rec.End, err = timeField(m, "endtime"); err != nil {
		return Record{}, err
	}
	value, ok := m["value"].(float64)
	if !ok {
		return Record{}, fmt.Errorf("value: want number, got %T", m["value"])
	}
	rec.Value = value
	return rec, nil
}

func stringField(m map[string]any, key string) (string, error) {
	switch v := m[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%s: want string, got %T", key, v)
	}
}

func timeField(m map[string]any, key string) (time.Time, error) {
	s, err := stringField(m, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func intField(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

func counts(c map[string]int) map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func countsField(m map[string]any, key string) map[string]int {
	raw, _ := m[key].(map[string]any)
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		f, _ := v.(float64)
		out[k] = int(f)
	}
	return out
}
